package executor

import "context"

// Runtime is the host integration surface of the Executor.
//
//   - ResolveSync is called only for fields with Async == false, immediately
//     while the executor expands a depth.
//   - BatchResolveAsync is called once per depth with every async field
//     collected at that depth. It must return one result per task, in task
//     order. Results are independent: one failing task does not fail the
//     others.
//   - ResolveType names the concrete object type of a union or interface
//     value.
//   - SerializeLeafValue turns a scalar or enum value into a JSON-safe Go
//     value. Enums serialize to their GraphQL value name.
//
// Implementations must be safe for concurrent use and must not mutate source
// or args.
type Runtime interface {
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// SubscriptionRuntime is implemented by runtimes that serve subscription
// root fields.
type SubscriptionRuntime interface {
	Runtime
	// Subscribe opens the event stream of a subscription field. The channel
	// is closed when the stream ends or ctx is done.
	Subscribe(ctx context.Context, objectType string, field string, args map[string]any) (<-chan any, error)
	// ResolveEvent maps one event to the field's value before completion.
	ResolveEvent(ctx context.Context, objectType string, field string, event any, args map[string]any) (any, error)
}

type AsyncResolveTask struct {
	ObjectType string
	Field      string
	// Source is the parent object value, or the root value for root fields.
	Source any
	// Args are already coerced against the field's argument definitions.
	Args map[string]any
}

type AsyncResolveResult struct {
	Value any
	Error error
}
