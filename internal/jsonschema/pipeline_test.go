package jsonschema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func composite(query Raw) Raw {
	return Raw{
		"type":     "object",
		"required": []any{"query"},
		"properties": Raw{
			"query": Raw{"type": "object", "properties": query},
		},
	}
}

func resolve(t *testing.T, dir string, raw Raw) *Document {
	t.Helper()
	doc, err := Dereference(context.Background(), raw, &Loader{BaseDir: dir})
	require.NoError(t, err)
	Heal(doc)
	Rereference(doc)
	return doc
}

func field(t *testing.T, doc *Document, name string) *Schema {
	t.Helper()
	q := doc.Root.Property("query")
	require.NotNil(t, q)
	p := q.Property(name)
	require.NotNil(t, p, "field %s", name)
	return p
}

func TestDereference_RelativeFileRef(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "user.json", `{
		"title": "User",
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"type": "integer"},
			"friends": {"type": "array", "items": {"$ref": "#"}}
		}
	}`)
	doc := resolve(t, dir, composite(Raw{"getUser": Raw{"$ref": "./user.json"}}))

	user := field(t, doc, "getUser")
	require.Equal(t, KindObject, user.Kind)
	require.Equal(t, "User", user.Name)
	require.True(t, user.IsRequired("id"))
	friends := user.Property("friends")
	require.Equal(t, KindArray, friends.Kind)
	require.Same(t, user, friends.Items)
	require.Len(t, doc.Definitions, 1)
}

func TestDereference_YAMLRef(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pet.yaml", "title: Pet\ntype: object\nproperties:\n  name:\n    type: string\n")
	doc := resolve(t, dir, composite(Raw{"pet": Raw{"$ref": "pet.yaml"}}))
	pet := field(t, doc, "pet")
	require.Equal(t, "Pet", pet.Name)
	require.Equal(t, KindString, pet.Property("name").Kind)
}

func TestDereference_HTTPRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"title":"Remote","type":"object","properties":{"ok":{"type":"boolean"}}}`))
	}))
	defer srv.Close()

	doc := resolve(t, t.TempDir(), composite(Raw{"remote": Raw{"$ref": srv.URL + "/remote.json"}}))
	require.Equal(t, "Remote", field(t, doc, "remote").Name)
}

func TestDereference_MissingRef(t *testing.T) {
	_, err := Dereference(context.Background(), composite(Raw{"x": Raw{"$ref": "./missing.json"}}), &Loader{BaseDir: t.TempDir()})
	require.Error(t, err)
}

func TestHeal_NullableAndConst(t *testing.T) {
	doc := resolve(t, t.TempDir(), composite(Raw{
		"a": Raw{"type": []any{"string", "null"}},
		"b": Raw{"const": "fixed"},
		"c": Raw{"enum": []any{"red", "green", nil}},
		"d": Raw{"properties": Raw{"x": Raw{"type": "integer"}}},
		"e": Raw{"items": Raw{"type": "number"}},
		"f": Raw{"type": "object"},
		"g": Raw{"type": "integer", "enum": []any{1, 2}},
	}))

	a := field(t, doc, "a")
	require.Equal(t, KindString, a.Kind)
	require.True(t, a.Nullable)

	b := field(t, doc, "b")
	require.Equal(t, KindEnum, b.Kind)
	require.Equal(t, []any{"fixed"}, b.Enum)

	c := field(t, doc, "c")
	require.Equal(t, KindEnum, c.Kind)
	require.True(t, c.Nullable)

	require.Equal(t, KindObject, field(t, doc, "d").Kind)
	require.Equal(t, KindArray, field(t, doc, "e").Kind)
	require.Equal(t, KindAny, field(t, doc, "f").Kind)

	g := field(t, doc, "g")
	require.Equal(t, KindEnum, g.Kind)
	require.Equal(t, []any{int64(1), int64(2)}, g.Enum)
}

func TestHeal_AllOfMerge(t *testing.T) {
	doc := resolve(t, t.TempDir(), composite(Raw{
		"merged": Raw{
			"title": "Merged",
			"allOf": []any{
				Raw{"type": "object", "required": []any{"a"}, "properties": Raw{"a": Raw{"type": "string"}}},
				Raw{"type": "object", "required": []any{"b", "ghost"}, "properties": Raw{"b": Raw{"type": "integer"}}},
			},
		},
	}))
	m := field(t, doc, "merged")
	require.Equal(t, KindObject, m.Kind)
	require.NotNil(t, m.Property("a"))
	require.NotNil(t, m.Property("b"))
	require.ElementsMatch(t, []string{"a", "b"}, m.Required)
}

func TestHeal_Unions(t *testing.T) {
	cat := Raw{"title": "Cat", "type": "object", "required": []any{"meow"}, "properties": Raw{"meow": Raw{"type": "boolean"}}}
	dog := Raw{"title": "Dog", "type": "object", "required": []any{"bark"}, "properties": Raw{"bark": Raw{"type": "boolean"}}}
	doc := resolve(t, t.TempDir(), composite(Raw{
		"pet":    Raw{"title": "Pet", "oneOf": []any{cat, dog}},
		"single": Raw{"anyOf": []any{cat, Raw{"type": "null"}}},
		"shaped": Raw{
			"type":       "object",
			"properties": Raw{"a": Raw{"type": "string"}, "b": Raw{"type": "string"}},
			"oneOf":      []any{Raw{"required": []any{"a"}}, Raw{"required": []any{"b"}}},
		},
	}))

	pet := field(t, doc, "pet")
	require.Equal(t, KindUnion, pet.Kind)
	require.Equal(t, "Pet", pet.Name)
	require.Len(t, pet.Members, 2)
	require.Equal(t, "Cat", pet.Members[0].Name)
	require.Equal(t, "Dog", pet.Members[1].Name)

	single := field(t, doc, "single")
	require.Equal(t, KindObject, single.Kind)
	require.True(t, single.Nullable)

	require.Equal(t, KindObject, field(t, doc, "shaped").Kind)
}

func TestHeal_ObjectTypedUnion(t *testing.T) {
	cat := Raw{"title": "Cat", "type": "object", "properties": Raw{"meow": Raw{"type": "boolean"}}}
	dog := Raw{"title": "Dog", "type": "object", "properties": Raw{"bark": Raw{"type": "boolean"}}}
	doc := resolve(t, t.TempDir(), composite(Raw{
		"pet":   Raw{"title": "Pet", "type": "object", "oneOf": []any{cat, dog}},
		"loose": Raw{"type": "object", "additionalProperties": Raw{"type": "string"}, "anyOf": []any{cat, dog}},
	}))

	pet := field(t, doc, "pet")
	require.Equal(t, KindUnion, pet.Kind)
	require.Equal(t, "Pet", pet.Name)
	require.Len(t, pet.Members, 2)
	require.Equal(t, "Cat", pet.Members[0].Name)
	require.Equal(t, KindObject, pet.Members[0].Kind)
	require.Equal(t, "Dog", pet.Members[1].Name)
	require.Equal(t, KindObject, pet.Members[1].Kind)

	require.NotEqual(t, KindUnion, field(t, doc, "loose").Kind)
}

func TestRereference_DedupAndSuffix(t *testing.T) {
	addr := func() Raw {
		return Raw{"type": "object", "properties": Raw{"city": Raw{"type": "string"}}}
	}
	doc := resolve(t, t.TempDir(), composite(Raw{
		"home": Raw{"title": "Place", "type": "object", "properties": Raw{"address": addr()}},
		"work": Raw{"title": "Place", "type": "object", "properties": Raw{"address": addr(), "floor": Raw{"type": "integer"}}},
	}))

	home, work := field(t, doc, "home"), field(t, doc, "work")
	require.Equal(t, "Place", home.Name)
	require.Equal(t, "Place2", work.Name)
	require.Same(t, home.Property("address"), work.Property("address"))
	require.Equal(t, "Address", home.Property("address").Name)

	var names []string
	for _, d := range doc.Definitions {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"Place", "Address", "Place2"}, names)
}

func TestRereference_ReservedNames(t *testing.T) {
	doc := resolve(t, t.TempDir(), composite(Raw{
		"q": Raw{"title": "Query", "type": "object", "properties": Raw{"x": Raw{"type": "string"}}},
	}))
	require.Equal(t, "Query2", field(t, doc, "q").Name)
}
