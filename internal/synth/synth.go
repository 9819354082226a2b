// Package synth merges operation configs into one composite JSON Schema and
// runs it through the resolver pipeline.
//
// The composite schema is an object with one container per operation type
// (query, mutation, subscription) holding the response side of each field,
// plus matching *Input containers for the request side.
package synth

import (
	"context"
	"log/slog"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	"github.com/hanpama/restgraph/internal/jsonschema"
	"github.com/hanpama/restgraph/internal/logging"
)

// Containers of the composite schema, in emission order.
var containers = []string{"query", "mutation", "subscription", "queryInput", "mutationInput", "subscriptionInput"}

type Options struct {
	// Loader reads samples and resolves $refs. Its BaseDir anchors relative
	// paths.
	Loader *jsonschema.Loader
	Logger *slog.Logger
}

// Synthesize builds the composite schema for ops. Operations are processed
// in order; a sample that cannot be read or decoded fails the whole call
// with a configuration error naming the field.
func Synthesize(ctx context.Context, ops []config.Operation, opts Options) (jsonschema.Raw, error) {
	loader := opts.Loader
	if loader == nil {
		loader = &jsonschema.Loader{}
	}
	logger := logging.Component(logging.OrNop(opts.Logger), "synth")

	props := make(jsonschema.Raw, len(containers))
	for _, name := range containers {
		props[name] = jsonschema.Raw{"type": "object", "properties": jsonschema.Raw{}}
	}
	fields := func(container string) jsonschema.Raw {
		return props[container].(jsonschema.Raw)["properties"].(jsonschema.Raw)
	}

	for _, op := range ops {
		key := op.TypeKey()

		resp, err := side(ctx, loader, op.ResponseSchema, op.ResponseSample, responseTitle(op))
		if err != nil {
			return nil, errs.Configuration(op.Field, err, "read response sample")
		}
		if resp == nil {
			resp = jsonschema.Raw{"type": "object", "title": responseTitle(op)}
		}
		if op.Description != "" {
			if _, isRef := resp["$ref"]; !isRef {
				resp["description"] = op.Description
			}
		}
		fields(key)[op.Field] = resp

		req, err := side(ctx, loader, op.RequestSchema, op.RequestSample, requestTitle(op))
		if err != nil {
			return nil, errs.Configuration(op.Field, err, "read request sample")
		}
		if req != nil {
			fields(key + "Input")[op.Field] = req
		}
		logger.DebugContext(ctx, "operation synthesized", "type", key, "field", op.Field, "input", req != nil)
	}

	return jsonschema.Raw{
		"type":       "object",
		"required":   []any{"query"},
		"properties": props,
	}, nil
}

// side returns the schema of one side of an operation, or nil when neither a
// schema nor a sample is configured.
func side(ctx context.Context, loader *jsonschema.Loader, schemaRef string, sample any, title string) (jsonschema.Raw, error) {
	if schemaRef != "" {
		return jsonschema.Raw{"$ref": schemaRef}, nil
	}
	switch s := sample.(type) {
	case nil:
		return nil, nil
	case string:
		v, err := loader.Value(ctx, s)
		if err != nil {
			return nil, err
		}
		return jsonschema.Infer(v, title), nil
	default:
		return jsonschema.Infer(s, title), nil
	}
}

func responseTitle(op config.Operation) string {
	if op.ResponseTypeName != "" {
		return op.ResponseTypeName
	}
	return jsonschema.TypeName(op.Field) + "Response"
}

func requestTitle(op config.Operation) string {
	if op.RequestTypeName != "" {
		return op.RequestTypeName
	}
	return jsonschema.TypeName(op.Field) + "Request"
}

// Build synthesizes the composite schema and resolves it.
func Build(ctx context.Context, ops []config.Operation, opts Options) (*jsonschema.Document, error) {
	raw, err := Synthesize(ctx, ops, opts)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, raw, opts)
}

// Resolve runs a composite schema through the pipeline: dereference, heal,
// then re-reference.
func Resolve(ctx context.Context, raw jsonschema.Raw, opts Options) (*jsonschema.Document, error) {
	doc, err := jsonschema.Dereference(ctx, raw, opts.Loader)
	if err != nil {
		return nil, errs.SchemaResolution("dereference", err)
	}
	jsonschema.Heal(doc)
	jsonschema.Rereference(doc)
	logging.Component(logging.OrNop(opts.Logger), "synth").DebugContext(ctx, "schema resolved", "definitions", len(doc.Definitions))
	return doc, nil
}
