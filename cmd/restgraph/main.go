// Command restgraph serves REST APIs described by JSON schemas as a GraphQL
// gateway, and prints or queries the generated schema.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/logging"
)

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

type rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "restgraph",
		Short:         "GraphQL gateway over JSON-schema described REST APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "restgraph.yaml", "configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the file)")
	root.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "log format: text or json (overrides the file)")

	root.AddCommand(
		newServeCmd(f),
		newCompileSDLCmd(f),
		newQueryCmd(f),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger it describes. Flags
// win over the file.
func (f *rootFlags) load(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(f.config)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: logging.ParseFormat(cfg.Logging.Format),
		Output: stderr,
	})
	return cfg, log, nil
}

// environ exposes the process environment to ${env.*} placeholders.
func environ() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "restgraph %s (%s)\n", Version, Commit)
			return nil
		},
	}
}
