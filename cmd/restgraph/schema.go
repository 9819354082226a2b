package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/gateway"
	"github.com/hanpama/restgraph/internal/language"
	"github.com/hanpama/restgraph/internal/pubsub"
	"github.com/hanpama/restgraph/internal/schema"
)

func newCompileSDLCmd(f *rootFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile-sdl",
		Short: "Generate the GraphQL schema and print it as SDL",
		Long:  "Generate the GraphQL schema and print it as SDL. Validation always runs; exits non-zero on errors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := f.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			exe, err := gateway.Build(cmd.Context(), &cfg.Source, gateway.Deps{Env: environ(), Logger: log})
			if err != nil {
				return fmt.Errorf("build schema: %w", err)
			}
			for _, d := range exe.Diagnostics {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", d)
			}
			sdl := exe.SDL()
			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), sdl)
				return nil
			}
			return os.WriteFile(out, []byte(sdl), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the SDL to a file instead of stdout")
	return cmd
}

func newQueryCmd(f *rootFlags) *cobra.Command {
	var (
		variables     string
		operationName string
	)
	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Execute one GraphQL query or mutation against the upstream APIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := f.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			var vars map[string]any
			if variables != "" {
				dec := json.NewDecoder(strings.NewReader(variables))
				dec.UseNumber()
				if err := dec.Decode(&vars); err != nil {
					return fmt.Errorf("invalid --variables: %w", err)
				}
			}
			ps := pubsub.NewMemory(log)
			defer ps.Close()
			exe, err := gateway.Build(cmd.Context(), &cfg.Source, gateway.Deps{PubSub: ps, Env: environ(), Logger: log})
			if err != nil {
				return fmt.Errorf("build schema: %w", err)
			}
			validation, err := schema.Load(exe.Schema)
			if err != nil {
				return err
			}
			if introspectionEnabled(cfg) {
				if exe, err = exe.WithIntrospection(); err != nil {
					return err
				}
			}
			return execute(cmd, exe, validation, args[0], operationName, vars)
		},
	}
	cmd.Flags().StringVar(&variables, "variables", "", "variables as a JSON object")
	cmd.Flags().StringVar(&operationName, "operation", "", "operation to run when the document has several")
	return cmd
}

func introspectionEnabled(cfg *config.Config) bool {
	return cfg.Server.Introspection == nil || *cfg.Server.Introspection
}

// execute validates query against the schema as built, so introspection
// types of a wrapped executable never clash with the built-in ones.
func execute(cmd *cobra.Command, exe *gateway.Executable, validation *ast.Schema, query, operationName string, vars map[string]any) error {
	doc, gqlErrs := language.ParseAndValidate(validation, query)
	if len(gqlErrs) > 0 {
		return gqlErrs
	}
	op, err := language.SelectOperation(doc, operationName)
	if err != nil {
		return err
	}
	if op.Operation == language.Subscription {
		return fmt.Errorf("subscriptions need a running server")
	}
	res := exe.Executor().ExecuteRequest(cmd.Context(), doc, op.Name, vars, nil)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d error(s) in result", len(res.Errors))
	}
	return nil
}
