package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		want Metadata
	}{
		{
			name: "query defaults to GET",
			op:   Operation{Type: OperationQuery, Field: "getUser"},
			want: Metadata{HTTPMethod: "GET", OperationType: OperationQuery, RootTypeName: "Query", FieldName: "getUser"},
		},
		{
			name: "mutation defaults to POST",
			op:   Operation{Type: OperationMutation, Field: "createUser"},
			want: Metadata{HTTPMethod: "POST", OperationType: OperationMutation, RootTypeName: "Mutation", FieldName: "createUser"},
		},
		{
			name: "explicit method wins",
			op:   Operation{Type: OperationMutation, Field: "deleteUser", Method: "delete"},
			want: Metadata{HTTPMethod: "DELETE", OperationType: OperationMutation, RootTypeName: "Mutation", FieldName: "deleteUser"},
		},
		{
			name: "pubsub goes to Subscription",
			op:   Operation{Type: OperationSubscription, Field: "userCreated", PubSubTopic: "users:${id}"},
			want: Metadata{HTTPMethod: "GET", OperationType: OperationSubscription, RootTypeName: "Subscription", FieldName: "userCreated"},
		},
		{
			name: "untyped is a query",
			op:   Operation{Field: "ping"},
			want: Metadata{HTTPMethod: "GET", RootTypeName: "Query", FieldName: "ping"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.op.Metadata()); diff != "" {
				t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTypeKey(t *testing.T) {
	require.Equal(t, "query", Operation{}.TypeKey())
	require.Equal(t, "mutation", Operation{Type: OperationMutation}.TypeKey())
	require.Equal(t, "subscription", Operation{PubSubTopic: "t"}.TypeKey())
}

func TestValidate(t *testing.T) {
	base := func(ops ...Operation) *Source {
		return &Source{BaseURL: "http://api", Operations: ops}
	}
	require.NoError(t, base(Operation{Type: OperationQuery, Field: "a", Path: "/a"}).Validate())

	err := base(Operation{Field: ""}).Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)

	err = base(Operation{Field: "bad-name"}).Validate()
	require.ErrorContains(t, err, "not a valid GraphQL field name")

	err = base(Operation{Field: "a"}, Operation{Field: "a"}).Validate()
	require.ErrorContains(t, err, "duplicate field Query.a")

	require.NoError(t, base(Operation{Field: "a"}, Operation{Type: OperationMutation, Field: "a"}).Validate())

	err = base(Operation{Type: "stream", Field: "a"}).Validate()
	require.ErrorContains(t, err, `unknown type "stream"`)

	err = (&Source{Operations: []Operation{{Field: "a"}}}).Validate()
	require.ErrorContains(t, err, "needs a path")
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
source:
  baseUrl: http://localhost:3000
  operationHeaders:
    Authorization: Bearer ${context.headers.authorization}
  operations:
    - type: query
      field: getUser
      path: /users/${id}
      responseSample: ./user.json
      argTypeMap:
        id: ID!
    - type: subscription
      field: userCreated
      pubsubTopic: users
upstream:
  timeout: 3s
`))
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", cfg.Source.BaseURL)
	require.Len(t, cfg.Source.Operations, 2)
	require.Equal(t, "ID!", cfg.Source.Operations[0].ArgTypeMap["id"])
	require.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "message", cfg.Source.ErrorTemplate())
}

func TestParseInlineSample(t *testing.T) {
	cfg, err := Parse([]byte(`
source:
  baseUrl: http://api
  operations:
    - field: getUser
      path: /users/${id}
      responseSample: {"id": 1, "name": "a"}
`))
	require.NoError(t, err)
	sample, ok := cfg.Source.Operations[0].ResponseSample.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1, sample["id"])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("  \n"))
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = Parse([]byte("source: [unclosed"))
	require.ErrorIs(t, err, ErrInvalidYAML)

	_, err = Parse([]byte("unknownKey: 1"))
	require.ErrorIs(t, err, ErrInvalidYAML)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  baseUrl: http://api
  operations:
    - field: ping
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.Source.BaseDir)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, ErrFileNotFound)
}
