package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/restgraph/internal/cache"
	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	"github.com/hanpama/restgraph/internal/executor"
	"github.com/hanpama/restgraph/internal/language"
	"github.com/hanpama/restgraph/internal/pubsub"
)

func usersAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users/7":
			_, _ = io.WriteString(w, `{"id":7,"name":"Ada","email":"ada@example.com"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/users":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			in["id"] = 8
			_ = json.NewEncoder(w).Encode(in)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"no such route"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func userSource(baseURL string) *config.Source {
	user := map[string]any{"id": 1, "name": "x", "email": "a@b.io"}
	return &config.Source{
		Name:    "users",
		BaseURL: baseURL,
		Operations: []config.Operation{
			{Type: config.OperationQuery, Field: "getUser", Path: "/users/${id}", ResponseSample: user, ResponseTypeName: "User"},
			{Type: config.OperationMutation, Field: "createUser", Path: "/users", ResponseSample: user, ResponseTypeName: "User",
				RequestSample: map[string]any{"name": "x"}, RequestTypeName: "NewUser"},
			{Type: config.OperationSubscription, Field: "userCreated", PubSubTopic: "users:created", ResponseSample: user, ResponseTypeName: "User"},
		},
	}
}

func execute(t *testing.T, exe *Executable, query string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return exe.Executor().ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestBuildEndToEnd(t *testing.T) {
	srv, _ := usersAPI(t)
	exe, err := Build(context.Background(), userSource(srv.URL), Deps{PubSub: pubsub.NewMemory(nil)})
	require.NoError(t, err)

	sdl := exe.SDL()
	require.Contains(t, sdl, "getUser(id: String): User")
	require.Contains(t, sdl, "createUser(input: NewUserInput): User")
	require.Contains(t, sdl, "userCreated: User")

	res := execute(t, exe, `{ getUser(id: "7") { id name email } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"getUser": map[string]any{"id": 7, "name": "Ada", "email": "ada@example.com"}}, res.Data)

	res = execute(t, exe, `mutation { createUser(input: {name: "Grace"}) { id name } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"createUser": map[string]any{"id": 8, "name": "Grace"}}, res.Data)

	res = execute(t, exe, `{ getUser(id: "404") { id } }`)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "no such route", res.Errors[0].Message)
}

func TestWithIntrospection(t *testing.T) {
	srv, _ := usersAPI(t)
	exe, err := Build(context.Background(), userSource(srv.URL), Deps{PubSub: pubsub.NewMemory(nil)})
	require.NoError(t, err)

	full, err := exe.WithIntrospection()
	require.NoError(t, err)
	res := execute(t, full, `{ __type(name: "User") { name } __schema { queryType { name } } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"__type":   map[string]any{"name": "User"},
		"__schema": map[string]any{"queryType": map[string]any{"name": "Query"}},
	}, res.Data)
	require.NotContains(t, exe.Schema.Types, "__Schema")
}

func TestBuildMemoizes(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	var finishes []events.SchemaBuildFinish
	eventbus.Subscribe(func(_ context.Context, e events.SchemaBuildFinish) { finishes = append(finishes, e) })

	srv, _ := usersAPI(t)
	g := New(Deps{PubSub: pubsub.NewMemory(nil)})
	first, err := g.Build(context.Background(), userSource(srv.URL))
	require.NoError(t, err)
	second, err := g.Build(context.Background(), userSource(srv.URL))
	require.NoError(t, err)
	require.Same(t, first, second)

	other := userSource(srv.URL)
	other.Operations[0].Path = "/people/${id}"
	third, err := g.Build(context.Background(), other)
	require.NoError(t, err)
	require.NotSame(t, first, third)

	require.Len(t, finishes, 3)
	require.False(t, finishes[0].Cached)
	require.True(t, finishes[1].Cached)
	require.False(t, finishes[2].Cached)
	require.Equal(t, "users", finishes[0].Source)
	require.NotZero(t, finishes[0].Types)
}

func TestCompositeCache(t *testing.T) {
	var sampleHits atomic.Int32
	samples := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sampleHits.Add(1)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer samples.Close()

	store := cache.NewMemory(time.Minute)
	defer store.Close()
	src := &config.Source{
		BaseURL:    "http://upstream",
		Operations: []config.Operation{{Field: "health", Path: "/health", ResponseSample: samples.URL + "/health.json"}},
	}

	// Separate gateways share only the store.
	_, err := New(Deps{Cache: store}).Build(context.Background(), src)
	require.NoError(t, err)
	exe, err := New(Deps{Cache: store}).Build(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, int32(1), sampleHits.Load())
	require.NotNil(t, exe.Schema.GetQueryType().Field("health"))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *config.Source
		deps Deps
		kind errs.Kind
	}{
		{
			name: "invalid source",
			src:  &config.Source{Operations: []config.Operation{{Field: "bad name"}}},
			kind: errs.KindConfiguration,
		},
		{
			name: "missing schema file",
			src: &config.Source{BaseURL: "http://x", BaseDir: t.TempDir(), Operations: []config.Operation{
				{Field: "getUser", ResponseSchema: "./missing.json"},
			}},
			kind: errs.KindSchemaResolution,
		},
		{
			name: "pubsub without backend",
			src:  &config.Source{Operations: []config.Operation{{Field: "events", PubSubTopic: "t"}}},
			kind: errs.KindConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.deps)
			_, err := g.Build(context.Background(), tt.src)
			require.Error(t, err)
			require.True(t, errs.Is(err, tt.kind), err.Error())
			require.Empty(t, g.memo)
		})
	}
}

func TestHashIsStable(t *testing.T) {
	a, err := Hash(userSource("http://a"))
	require.NoError(t, err)
	b, err := Hash(userSource("http://a"))
	require.NoError(t, err)
	c, err := Hash(userSource("http://b"))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
