package synth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	"github.com/hanpama/restgraph/internal/jsonschema"
)

func fieldsOf(t *testing.T, raw jsonschema.Raw, container string) jsonschema.Raw {
	t.Helper()
	c, ok := raw["properties"].(jsonschema.Raw)[container].(jsonschema.Raw)
	require.True(t, ok, "container %s", container)
	return c["properties"].(jsonschema.Raw)
}

func TestSynthesize_ResponseSchemaIsExactRef(t *testing.T) {
	raw, err := Synthesize(context.Background(), []config.Operation{
		{Type: config.OperationQuery, Field: "getUser", ResponseSchema: "./user.json#/definitions/User", Description: "ignored on refs"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, jsonschema.Raw{"$ref": "./user.json#/definitions/User"}, fieldsOf(t, raw, "query")["getUser"])
	require.Empty(t, fieldsOf(t, raw, "queryInput"))
}

func TestSynthesize_Placeholder(t *testing.T) {
	raw, err := Synthesize(context.Background(), []config.Operation{
		{Type: config.OperationMutation, Field: "ping"},
		{Type: config.OperationMutation, Field: "pong", ResponseTypeName: "Pong"},
	}, Options{})
	require.NoError(t, err)
	mut := fieldsOf(t, raw, "mutation")
	require.Equal(t, jsonschema.Raw{"type": "object", "title": "PingResponse"}, mut["ping"])
	require.Equal(t, jsonschema.Raw{"type": "object", "title": "Pong"}, mut["pong"])
	require.Equal(t, []any{"query"}, raw["required"])
}

func TestSynthesize_Samples(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{"id":1,"email":"a@b.io"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "req.yaml"), []byte("name: a\n"), 0o644))

	raw, err := Synthesize(context.Background(), []config.Operation{
		{Type: config.OperationMutation, Field: "createUser", ResponseSample: "./user.json", RequestSample: "req.yaml"},
		{Field: "inline", ResponseSample: map[string]any{"ok": true}},
	}, Options{Loader: &jsonschema.Loader{BaseDir: dir}})
	require.NoError(t, err)

	resp := fieldsOf(t, raw, "mutation")["createUser"].(jsonschema.Raw)
	require.Equal(t, "CreateUserResponse", resp["title"])
	props := resp["properties"].(jsonschema.Raw)
	require.Equal(t, jsonschema.Raw{"type": "string", "format": "email"}, props["email"])
	require.Equal(t, false, resp["additionalProperties"])

	req := fieldsOf(t, raw, "mutationInput")["createUser"].(jsonschema.Raw)
	require.Equal(t, "CreateUserRequest", req["title"])

	inline := fieldsOf(t, raw, "query")["inline"].(jsonschema.Raw)
	require.Equal(t, "InlineResponse", inline["title"])
}

func TestSynthesize_PubSubGoesToSubscription(t *testing.T) {
	raw, err := Synthesize(context.Background(), []config.Operation{
		{Type: config.OperationSubscription, Field: "userCreated", PubSubTopic: "users"},
	}, Options{})
	require.NoError(t, err)
	require.Contains(t, fieldsOf(t, raw, "subscription"), "userCreated")
}

func TestSynthesize_Deterministic(t *testing.T) {
	ops := []config.Operation{
		{Field: "a", ResponseSample: map[string]any{"x": 1, "y": []any{"z"}}},
		{Type: config.OperationMutation, Field: "b", RequestSample: map[string]any{"n": "v"}},
	}
	first, err := Synthesize(context.Background(), ops, Options{})
	require.NoError(t, err)
	second, err := Synthesize(context.Background(), ops, Options{})
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("composite differs between runs (-first +second):\n%s", diff)
	}
}

func TestSynthesize_SampleFailure(t *testing.T) {
	_, err := Synthesize(context.Background(), []config.Operation{
		{Field: "broken", ResponseSample: "./missing.json"},
	}, Options{Loader: &jsonschema.Loader{BaseDir: t.TempDir()}})
	require.Error(t, err)
	require.True(t, errs.IsConfiguration(err))
	require.ErrorContains(t, err, "broken")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(`{
		"title": "User", "type": "object", "required": ["id"],
		"properties": {"id": {"type": "integer"}, "name": {"type": ["string", "null"]}}
	}`), 0o644))

	doc, err := Build(context.Background(), []config.Operation{
		{Field: "getUser", Path: "/users/${id}", ResponseSchema: "./user.json"},
		{Field: "listUsers", ResponseSample: []any{map[string]any{"id": 1}}},
	}, Options{Loader: &jsonschema.Loader{BaseDir: dir}})
	require.NoError(t, err)

	q := doc.Root.Property("query")
	user := q.Property("getUser")
	require.Equal(t, jsonschema.KindObject, user.Kind)
	require.Equal(t, "User", user.Name)
	require.True(t, user.Property("name").Nullable)

	list := q.Property("listUsers")
	require.Equal(t, jsonschema.KindArray, list.Kind)
	require.Equal(t, jsonschema.KindObject, list.Items.Kind)
}

func TestBuild_UnresolvableRef(t *testing.T) {
	_, err := Build(context.Background(), []config.Operation{
		{Field: "x", ResponseSchema: "./nope.json"},
	}, Options{Loader: &jsonschema.Loader{BaseDir: t.TempDir()}})
	require.Error(t, err)
	require.True(t, errs.IsSchemaResolution(err))
}
