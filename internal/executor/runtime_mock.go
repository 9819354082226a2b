package executor

import (
	"context"
	"fmt"
	"sync"
)

// MockResolver resolves a single field value. MockRuntime adapts it for
// batched calls in tests.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

func NewMockValueResolver(val any) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return val, nil
	}
}

func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return nil, err
	}
}

// Call records one resolver invocation. Async calls made in the same
// BatchResolveAsync share a BatchID; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime implements SubscriptionRuntime over a resolver registry keyed
// by "ObjectType.Field". Abstract types resolve through the "__typename" key
// of map values.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	streams   map[string]chan any
	calls     []Call
	batchSeq  int

	serializer func(typeName string, val any) (any, error)
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{
		resolvers: make(map[string]MockResolver),
		streams:   make(map[string]chan any),
	}
	for k, v := range resolvers {
		m.resolvers[k] = v
	}
	return m
}

func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

func (m *MockRuntime) SetSerializer(f func(typeName string, val any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serializer = f
}

// Stream returns the event channel served to subscriptions of objectType.field.
func (m *MockRuntime) Stream(objectType, field string) chan any {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := objectType + "." + field
	ch, ok := m.streams[key]
	if !ok {
		ch = make(chan any, 16)
		m.streams[key] = ch
	}
	return ch
}

func (m *MockRuntime) resolve(ctx context.Context, kind string, batchID int, objectType, field string, source any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.calls = append(m.calls, Call{Kind: kind, ObjectType: objectType, Field: field, Source: source, Args: args, BatchID: batchID})
	m.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	return r(ctx, source, args)
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	return m.resolve(ctx, CallKindSync, 0, objectType, field, source, args)
}

func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batchSeq++
	batchID := m.batchSeq
	m.mu.Unlock()

	results := make([]AsyncResolveResult, len(tasks))
	for i, t := range tasks {
		v, err := m.resolve(ctx, CallKindAsync, batchID, t.ObjectType, t.Field, t.Source, t.Args)
		results[i] = AsyncResolveResult{Value: v, Error: err}
	}
	return results
}

func (m *MockRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve concrete type of %s", abstractType)
}

func (m *MockRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serializer
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(typeName, value)
}

func (m *MockRuntime) Subscribe(ctx context.Context, objectType string, field string, args map[string]any) (<-chan any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Kind: "subscribe", ObjectType: objectType, Field: field, Args: args})
	m.mu.Unlock()
	return m.Stream(objectType, field), nil
}

// ResolveEvent passes events through unchanged unless a resolver is
// registered for the field, in which case the event is its source.
func (m *MockRuntime) ResolveEvent(ctx context.Context, objectType string, field string, event any, args map[string]any) (any, error) {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.mu.Unlock()
	if r == nil {
		return event, nil
	}
	return r(ctx, event, args)
}

// GetCalls returns a copy of the recorded calls in order.
func (m *MockRuntime) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batchSeq = 0
}
