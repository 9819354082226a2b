// Package reqid carries a request ID through the context so events of one
// GraphQL request can be correlated.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header an incoming request ID is read from and echoed in.
const Header = "X-Request-Id"

type key struct{}

// NewContext returns a copy of parent carrying id. An empty id is replaced by
// a random UUID. The stored ID is returned.
func NewContext(parent context.Context, id string) (context.Context, string) {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
