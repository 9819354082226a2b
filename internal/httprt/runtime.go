// Package httprt is the executor.Runtime that serves operation fields: HTTP
// operations call the upstream API, pubsub operations stream topic events,
// and every other field reads the JSON value its parent resolved to.
package httprt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/executor"
	"github.com/hanpama/restgraph/internal/httptp"
	"github.com/hanpama/restgraph/internal/interpolate"
	"github.com/hanpama/restgraph/internal/pubsub"
	"github.com/hanpama/restgraph/internal/schema"
)

// Runtime is immutable once built and safe for concurrent use.
type Runtime struct {
	source   *config.Source
	schema   *schema.Schema
	fetcher  httptp.Fetcher
	pubsub   pubsub.PubSub
	env      map[string]string
	bindings map[fieldKey]*binding
	log      *slog.Logger
}

var _ executor.SubscriptionRuntime = (*Runtime)(nil)

type requestValuesKey struct{}

// WithRequestValues attaches the values ${context.*} placeholders read, such
// as the forwarded request headers under "headers".
func WithRequestValues(ctx context.Context, values map[string]any) context.Context {
	return context.WithValue(ctx, requestValuesKey{}, values)
}

// RequestValues returns the values attached by WithRequestValues.
func RequestValues(ctx context.Context) map[string]any {
	v, _ := ctx.Value(requestValuesKey{}).(map[string]any)
	return v
}

func (r *Runtime) vars(ctx context.Context, objectType, field string, root any, args map[string]any) interpolate.Context {
	return interpolate.Context{
		Root:    root,
		Args:    args,
		Context: RequestValues(ctx),
		Info:    map[string]any{"fieldName": field, "parentType": objectType},
		Env:     r.env,
	}
}

// ResolveSync reads a field of a JSON object resolved by its parent. It
// never performs I/O; operation fields are async and go through
// BatchResolveAsync.
func (r *Runtime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	obj, ok := source.(map[string]any)
	if !ok {
		return nil, nil
	}
	key := field
	if t := r.schema.Types[objectType]; t != nil {
		if f := t.Field(field); f != nil {
			key = f.SourceKey()
		}
	}
	return obj[key], nil
}

// BatchResolveAsync runs every task of the batch concurrently. Results keep
// task order and fail independently.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	run := func(i int) {
		v, err := r.resolve(ctx, tasks[i])
		results[i] = executor.AsyncResolveResult{Value: v, Error: err}
	}
	if len(tasks) == 1 {
		run(0)
		return results
	}
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i := range tasks {
		go func() {
			defer wg.Done()
			run(i)
		}()
	}
	wg.Wait()
	return results
}

func (r *Runtime) resolve(ctx context.Context, task executor.AsyncResolveTask) (any, error) {
	b := r.bindings[fieldKey{task.ObjectType, task.Field}]
	if b == nil {
		if obj, ok := task.Source.(map[string]any); ok {
			return r.ResolveSync(ctx, task.ObjectType, task.Field, obj, task.Args)
		}
		return nil, nil
	}
	if b.pubsub() {
		return nil, fmt.Errorf("%s.%s is a subscription field", task.ObjectType, task.Field)
	}
	return r.call(ctx, b, task)
}

// Subscribe interpolates the operation's topic and opens it.
func (r *Runtime) Subscribe(ctx context.Context, objectType string, field string, args map[string]any) (<-chan any, error) {
	b := r.bindings[fieldKey{objectType, field}]
	if b == nil || !b.pubsub() {
		return nil, fmt.Errorf("%s.%s is not bound to a pubsub topic", objectType, field)
	}
	topic := r.vars(ctx, objectType, field, nil, args).Render(b.op.PubSubTopic)
	r.log.Debug("subscribe", "field", objectType+"."+field, "topic", topic)
	return r.pubsub.Subscribe(ctx, topic)
}

// ResolveEvent forwards the event payload unchanged.
func (r *Runtime) ResolveEvent(ctx context.Context, objectType string, field string, event any, args map[string]any) (any, error) {
	r.log.Debug("event", "field", objectType+"."+field, "payload", event)
	return event, nil
}

// ResolveType picks the union member whose shape best matches the value.
// An explicit "__typename" naming a member wins.
func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	t := r.schema.Types[abstractType]
	if t == nil {
		return "", fmt.Errorf("unknown abstract type %s", abstractType)
	}
	obj, _ := value.(map[string]any)
	if name, ok := obj["__typename"].(string); ok && r.schema.PossibleType(abstractType, name) {
		return name, nil
	}
	shapes := make([]shape, 0, len(t.PossibleTypes))
	for _, name := range t.PossibleTypes {
		if member := r.schema.Types[name]; member != nil {
			shapes = append(shapes, outputShape(member))
		}
	}
	i := bestMatch(keysOf(obj), shapes)
	if i < 0 {
		return "", fmt.Errorf("value matches no member of %s", abstractType)
	}
	r.log.Debug("resolved type", "abstract", abstractType, "concrete", shapes[i].name)
	return shapes[i].name, nil
}
