package executor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/restgraph/internal/executor"
	language "github.com/hanpama/restgraph/internal/language"
	schema "github.com/hanpama/restgraph/internal/schema"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	require.NoError(t, err)
	return d
}

func str() *schema.TypeRef { return schema.NamedType("String") }

func named(n string) *schema.TypeRef { return schema.NamedType(n) }

func nonNull(t *schema.TypeRef) *schema.TypeRef { return schema.NonNullType(t) }

// userSchema:
//
//	type Query { user(id: ID!): User @async  users: [User!] @async }
//	type User { id: ID!  name: String  friend: Friend  best: Friend! }
//	type Friend { name: String! @async }
func userSchema() *schema.Schema {
	s := schema.NewSchema("")
	s.SetQueryType("Query")
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(schema.NewField("user", "", named("User")).SetAsync(true).
			AddArgument(schema.NewInputValue("id", "", nonNull(named("ID"))))).
		AddField(schema.NewField("users", "", schema.ListType(nonNull(named("User")))).SetAsync(true)))
	s.AddType(schema.NewType("User", schema.TypeKindObject, "").
		AddField(schema.NewField("id", "", nonNull(named("ID")))).
		AddField(schema.NewField("name", "", str())).
		AddField(schema.NewField("friend", "", named("Friend"))).
		AddField(schema.NewField("best", "", nonNull(named("Friend")))))
	s.AddType(schema.NewType("Friend", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", nonNull(str())).SetAsync(true)))
	return s
}

func field(key string) executor.MockResolver {
	return func(ctx context.Context, source any, args map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}

func TestBatchPerDepth(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.user": func(ctx context.Context, source any, args map[string]any) (any, error) {
			return map[string]any{"id": args["id"], "friend": map[string]any{"n": "F" + args["id"].(string)}}, nil
		},
		"User.id":     field("id"),
		"User.friend": field("friend"),
		"Friend.name": field("n"),
	})
	exec := executor.NewExecutor(rt, userSchema())
	doc := mustParseQuery(t, `{ a: user(id: "1") { id friend { name } } b: user(id: "2") { friend { name } } }`)

	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	require.Empty(t, res.Errors)
	want := map[string]any{
		"a": map[string]any{"id": "1", "friend": map[string]any{"name": "F1"}},
		"b": map[string]any{"friend": map[string]any{"name": "F2"}},
	}
	require.Empty(t, cmp.Diff(want, res.Data))

	batches := map[int][]string{}
	for _, c := range rt.GetCalls() {
		if c.Kind == executor.CallKindAsync {
			batches[c.BatchID] = append(batches[c.BatchID], c.ObjectType+"."+c.Field)
		}
	}
	require.Equal(t, map[int][]string{
		1: {"Query.user", "Query.user"},
		2: {"Friend.name", "Friend.name"},
	}, batches)
}

func TestNullPropagation(t *testing.T) {
	base := map[string]executor.MockResolver{
		"Query.user":  executor.NewMockValueResolver(map[string]any{"id": "1", "friend": map[string]any{}, "best": map[string]any{}}),
		"User.id":     field("id"),
		"User.friend": field("friend"),
		"User.best":   field("best"),
		"Friend.name": executor.NewMockValueResolver(nil),
	}

	t.Run("async null stops at nullable parent", func(t *testing.T) {
		rt := executor.NewMockRuntime(base)
		res := executor.NewExecutor(rt, userSchema()).
			ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: "1") { id friend { name } } }`), "", nil, nil)
		require.Equal(t, map[string]any{"user": map[string]any{"id": "1", "friend": nil}}, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"user", "friend", "name"}, res.Errors[0].Path)
	})

	t.Run("async null crosses non-null parent", func(t *testing.T) {
		rt := executor.NewMockRuntime(base)
		res := executor.NewExecutor(rt, userSchema()).
			ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: "1") { id best { name } } }`), "", nil, nil)
		require.Equal(t, map[string]any{"user": nil}, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"user", "best", "name"}, res.Errors[0].Path)
	})

	t.Run("sync error nulls the parent", func(t *testing.T) {
		rt := executor.NewMockRuntime(base)
		rt.SetResolver("User", "id", executor.NewMockErrorResolver(fmt.Errorf("boom")))
		res := executor.NewExecutor(rt, userSchema()).
			ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: "1") { id friend { name } } }`), "", nil, nil)
		require.Equal(t, map[string]any{"user": nil}, res.Data)
		require.Equal(t, []executor.GraphQLError{{Message: "boom", Path: executor.Path{"user", "id"}}}, res.Errors)

		for _, c := range rt.GetCalls() {
			require.NotEqual(t, "Friend", c.ObjectType, "work below a nulled object must not run")
		}
	})

	t.Run("non-null list item nulls the list", func(t *testing.T) {
		rt := executor.NewMockRuntime(base)
		rt.SetResolver("Query", "users", executor.NewMockValueResolver([]any{map[string]any{"id": "1"}, nil}))
		res := executor.NewExecutor(rt, userSchema()).
			ExecuteRequest(context.Background(), mustParseQuery(t, `{ users { id } }`), "", nil, nil)
		require.Equal(t, map[string]any{"users": nil}, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"users", 1}, res.Errors[0].Path)
	})
}

type upstreamError struct{ status int }

func (e upstreamError) Error() string { return "upstream failed" }
func (e upstreamError) Extensions() map[string]any {
	return map[string]any{"status": e.status}
}

func TestErrorExtensions(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.user": executor.NewMockErrorResolver(fmt.Errorf("get user: %w", upstreamError{status: 404})),
	})
	res := executor.NewExecutor(rt, userSchema()).
		ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: "1") { id } }`), "", nil, nil)
	require.Equal(t, map[string]any{"user": nil}, res.Data)
	require.Equal(t, []executor.GraphQLError{{
		Message:    "get user: upstream failed",
		Path:       executor.Path{"user"},
		Extensions: map[string]any{"status": 404},
	}}, res.Errors)
}

func petSchema() *schema.Schema {
	s := schema.NewSchema("")
	s.SetQueryType("Query")
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(schema.NewField("pets", "", schema.ListType(named("Pet"))).SetAsync(true)))
	s.AddType(schema.NewType("Pet", schema.TypeKindUnion, "").AddPossibleType("Cat").AddPossibleType("Dog"))
	s.AddType(schema.NewType("Cat", schema.TypeKindObject, "").AddField(schema.NewField("meows", "", named("Boolean"))))
	s.AddType(schema.NewType("Dog", schema.TypeKindObject, "").AddField(schema.NewField("barks", "", named("Boolean"))))
	return s
}

func TestAbstractTypes(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.pets": executor.NewMockValueResolver([]any{
			map[string]any{"__typename": "Cat", "meows": true},
			map[string]any{"__typename": "Dog", "barks": false},
			map[string]any{"__typename": "Fish"},
		}),
		"Cat.meows": field("meows"),
		"Dog.barks": field("barks"),
	})
	doc := mustParseQuery(t, `
		{ pets { __typename ...on Cat { meows } ...dog ...pet } }
		fragment dog on Dog { barks }
		fragment pet on Pet { kind: __typename }
	`)
	res := executor.NewExecutor(rt, petSchema()).ExecuteRequest(context.Background(), doc, "", nil, nil)

	want := map[string]any{"pets": []any{
		map[string]any{"__typename": "Cat", "meows": true, "kind": "Cat"},
		map[string]any{"__typename": "Dog", "barks": false, "kind": "Dog"},
		nil,
	}}
	require.Empty(t, cmp.Diff(want, res.Data))
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"pets", 2}, res.Errors[0].Path)
}

func inputSchema() *schema.Schema {
	s := schema.NewSchema("")
	s.SetQueryType("Query")
	s.AddType(schema.NewType("JSON", schema.TypeKindScalar, ""))
	s.AddType(schema.NewType("Order", schema.TypeKindEnum, "").
		AddEnumValue(schema.NewEnumValue("ASC", "")).
		AddEnumValue(schema.NewEnumValue("DESC", "")))
	s.AddType(schema.NewType("FindInput", schema.TypeKindInputObject, "").
		AddInputField(schema.NewInputValue("name", "", nonNull(str()))).
		AddInputField(schema.NewInputValue("limit", "", named("Int")).SetDefault(10)).
		AddInputField(schema.NewInputValue("order", "", named("Order"))))
	s.AddType(schema.NewType("ByInput", schema.TypeKindInputObject, "").SetOneOf(true).
		AddInputField(schema.NewInputValue("id", "", named("ID"))).
		AddInputField(schema.NewInputValue("email", "", str())))
	echo := func(arg string) *schema.Field {
		return schema.NewField(arg, "", named("JSON")).SetAsync(true)
	}
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").
		AddField(echo("find").AddArgument(schema.NewInputValue("input", "", nonNull(named("FindInput"))))).
		AddField(echo("pick").AddArgument(schema.NewInputValue("by", "", named("ByInput")))).
		AddField(echo("page").AddArgument(schema.NewInputValue("size", "", named("Int")))))
	return s
}

func echoArgs(ctx context.Context, source any, args map[string]any) (any, error) {
	return args, nil
}

func TestArgumentCoercion(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.find": echoArgs,
		"Query.pick": echoArgs,
		"Query.page": echoArgs,
	})
	exec := executor.NewExecutor(rt, inputSchema())
	run := func(q string, vars map[string]any) *executor.ExecutionResult {
		return exec.ExecuteRequest(context.Background(), mustParseQuery(t, q), "", vars, nil)
	}

	t.Run("input object defaults from variables", func(t *testing.T) {
		res := run(`query($in: FindInput!) { find(input: $in) }`, map[string]any{"in": map[string]any{"name": "a", "order": "DESC"}})
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"find": map[string]any{"input": map[string]any{"name": "a", "limit": 10, "order": "DESC"}}}, res.Data)
	})

	t.Run("literal object with enum", func(t *testing.T) {
		res := run(`{ find(input: {name: "b", limit: 2, order: ASC}) }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"find": map[string]any{"input": map[string]any{"name": "b", "limit": 2, "order": "ASC"}}}, res.Data)
	})

	t.Run("unknown enum value", func(t *testing.T) {
		res := run(`query($in: FindInput!) { find(input: $in) }`, map[string]any{"in": map[string]any{"name": "a", "order": "SIDEWAYS"}})
		require.Nil(t, res.Data)
		require.Len(t, res.Errors, 1)
		require.Contains(t, res.Errors[0].Message, "SIDEWAYS")
	})

	t.Run("oneOf needs exactly one field", func(t *testing.T) {
		res := run(`{ pick(by: {id: "1", email: "a@b.co"}) }`, nil)
		require.Equal(t, map[string]any{"pick": nil}, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"pick"}, res.Errors[0].Path)

		res = run(`{ pick(by: {email: "a@b.co"}) }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"pick": map[string]any{"by": map[string]any{"email": "a@b.co"}}}, res.Data)
	})

	t.Run("integral float coerces to Int", func(t *testing.T) {
		res := run(`query($n: Int) { page(size: $n) }`, map[string]any{"n": 3.0})
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"page": map[string]any{"size": 3}}, res.Data)

		res = run(`query($n: Int) { page(size: $n) }`, map[string]any{"n": 3.5})
		require.Len(t, res.Errors, 1)
	})

	t.Run("missing variable omits the argument", func(t *testing.T) {
		res := run(`query($n: Int) { page(size: $n) }`, nil)
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"page": map[string]any{}}, res.Data)
	})
}

func TestSkipInclude(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.user": executor.NewMockValueResolver(map[string]any{"id": "1", "name": "Ann"}),
		"User.id":    field("id"),
		"User.name":  field("name"),
	})
	doc := mustParseQuery(t, `query($withName: Boolean!) { user(id: "1") { id @skip(if: true) name @include(if: $withName) } }`)
	exec := executor.NewExecutor(rt, userSchema())

	res := exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"withName": true}, nil)
	require.Equal(t, map[string]any{"user": map[string]any{"name": "Ann"}}, res.Data)

	res = exec.ExecuteRequest(context.Background(), doc, "", map[string]any{"withName": false}, nil)
	require.Equal(t, map[string]any{"user": map[string]any{}}, res.Data)
}

func TestOperationSelection(t *testing.T) {
	exec := executor.NewExecutor(executor.NewMockRuntime(nil), userSchema())
	doc := mustParseQuery(t, `query A { users { id } } query B { users { id } }`)

	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)

	res = exec.ExecuteRequest(context.Background(), doc, "C", nil, nil)
	require.Contains(t, res.Errors[0].Message, `"C"`)

	res = exec.ExecuteRequest(context.Background(), doc, "B", nil, nil)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"users": nil}, res.Data)

	res = exec.ExecuteRequest(context.Background(), mustParseQuery(t, `mutation { x }`), "", nil, nil)
	require.Len(t, res.Errors, 1)
}

func TestSerializeLeafValue(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.user": executor.NewMockValueResolver(map[string]any{"id": 7}),
		"User.id":    field("id"),
	})
	rt.SetSerializer(func(typeName string, val any) (any, error) {
		if typeName == "ID" {
			return fmt.Sprint(val), nil
		}
		return val, nil
	})
	res := executor.NewExecutor(rt, userSchema()).
		ExecuteRequest(context.Background(), mustParseQuery(t, `{ user(id: "7") { id } }`), "", nil, nil)
	require.Equal(t, map[string]any{"user": map[string]any{"id": "7"}}, res.Data)
}

func eventSchema() *schema.Schema {
	s := schema.NewSchema("")
	s.SetQueryType("Query").SetSubscriptionType("Subscription")
	s.AddType(schema.NewType("Query", schema.TypeKindObject, "").AddField(schema.NewField("ok", "", named("Boolean"))))
	s.AddType(schema.NewType("Subscription", schema.TypeKindObject, "").
		AddField(schema.NewField("orderUpdated", "", named("Order")).
			AddArgument(schema.NewInputValue("id", "", named("ID")))))
	s.AddType(schema.NewType("Order", schema.TypeKindObject, "").
		AddField(schema.NewField("id", "", nonNull(named("ID")))).
		AddField(schema.NewField("status", "", str())))
	return s
}

func TestSubscribe(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Order.id":     field("id"),
		"Order.status": field("status"),
	})
	exec := executor.NewExecutor(rt, eventSchema())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := exec.Subscribe(ctx, mustParseQuery(t, `subscription { order: orderUpdated(id: "9") { id status } }`), "", nil)
	require.NoError(t, err)

	stream := rt.Stream("Subscription", "orderUpdated")
	stream <- map[string]any{"id": "9", "status": "shipped"}
	stream <- map[string]any{"status": "lost"}

	next := func() *executor.ExecutionResult {
		select {
		case r := <-results:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
	first := next()
	require.Empty(t, first.Errors)
	require.Equal(t, map[string]any{"order": map[string]any{"id": "9", "status": "shipped"}}, first.Data)

	second := next()
	require.Equal(t, map[string]any{"order": nil}, second.Data)
	require.Len(t, second.Errors, 1)

	calls := rt.GetCalls()
	require.Equal(t, "subscribe", calls[0].Kind)
	require.Equal(t, map[string]any{"id": "9"}, calls[0].Args)

	close(stream)
	_, open := <-results
	require.False(t, open)
}

func TestSubscribeRejectsMultipleRootFields(t *testing.T) {
	exec := executor.NewExecutor(executor.NewMockRuntime(nil), eventSchema())
	_, err := exec.Subscribe(context.Background(), mustParseQuery(t, `subscription { a: orderUpdated { id } b: orderUpdated { id } }`), "", nil)
	require.Error(t, err)

	_, err = exec.Subscribe(context.Background(), mustParseQuery(t, `{ ok }`), "", nil)
	require.Error(t, err)
}
