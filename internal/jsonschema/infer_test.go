package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func decodeSample(t *testing.T, s string) any {
	t.Helper()
	v, err := Decode([]byte(s), false)
	require.NoError(t, err)
	return v
}

func TestInfer_Object(t *testing.T) {
	got := Infer(decodeSample(t, `{"id":1,"name":"a","score":1.5,"ok":true,"tags":["x"],"meta":null,"big":9007199254740991}`), "User")
	want := Raw{
		"title":                "User",
		"type":                 "object",
		"additionalProperties": false,
		"properties": Raw{
			"id":    Raw{"type": "integer"},
			"name":  Raw{"type": "string"},
			"score": Raw{"type": "number"},
			"ok":    Raw{"type": "boolean"},
			"tags":  Raw{"type": "array", "items": Raw{"type": "string"}},
			"meta":  Raw{},
			"big":   Raw{"type": "integer", "format": "int64"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestInfer_ArrayUsesFirstElement(t *testing.T) {
	got := Infer(decodeSample(t, `[{"a":1},{"b":"x"}]`), "")
	items := got["items"].(Raw)
	props := items["properties"].(Raw)
	require.Contains(t, props, "a")
	require.NotContains(t, props, "b")
	require.NotContains(t, got, "title")

	empty := Infer([]any{}, "")
	require.Equal(t, Raw{"type": "array", "items": Raw{}}, empty)
}

func TestInfer_TitleOnRootOnly(t *testing.T) {
	got := Infer(decodeSample(t, `{"child":{"x":1}}`), "Parent")
	child := got["properties"].(Raw)["child"].(Raw)
	require.NotContains(t, child, "title")
}

func TestInfer_YAMLSample(t *testing.T) {
	v, err := Decode([]byte("id: 3\nname: b\n"), true)
	require.NoError(t, err)
	got := Infer(v, "")
	props := got["properties"].(Raw)
	require.Equal(t, Raw{"type": "integer"}, props["id"])
	require.Equal(t, Raw{"type": "string"}, props["name"])
}

func TestDecode_KeepsNumbers(t *testing.T) {
	v := decodeSample(t, `{"n":10}`)
	require.Equal(t, json.Number("10"), v.(map[string]any)["n"])
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"550e8400-e29b-41d4-a716-446655440000", "uuid"},
		{"jane@example.com", "email"},
		{"jane@localhost", ""},
		{"10.0.0.1", "ipv4"},
		{"2001:db8::1", "ipv6"},
		{"2024-01-31", "date"},
		{"2024-01-31T10:00:00Z", "date-time"},
		{"2024-01-31T10:00:00.123+02:00", "date-time"},
		{"10:00:00", "time"},
		{"https://example.com/a", "uri"},
		{"mailto:x", ""},
		{"hello", ""},
		{"", ""},
		{"2024-13-45", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, DetectFormat(tt.in))
		})
	}
}
