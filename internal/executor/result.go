package executor

import (
	"errors"
	"fmt"
	"strings"
)

type Path []PathElement

// PathElement is a response key (string) or a list index (int).
type PathElement any

func (p Path) String() string {
	var b strings.Builder
	for i, elem := range p {
		switch v := elem.(type) {
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		case int:
			fmt.Fprintf(&b, "[%d]", v)
		}
	}
	return b.String()
}

// HasPrefix reports whether prefix is an ancestor of, or equal to, p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (p Path) append(elem PathElement) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = elem
	return out
}

// GraphQLError is a located execution error.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// extender is implemented by errors that carry GraphQL error extensions.
type extender interface {
	Extensions() map[string]any
}

// LocatedError converts err into a GraphQLError at path, keeping any
// extensions found in its chain.
func LocatedError(err error, path Path) GraphQLError {
	var gqlErr GraphQLError
	if errors.As(err, &gqlErr) {
		if gqlErr.Path == nil {
			gqlErr.Path = path
		}
		return gqlErr
	}
	out := GraphQLError{Message: err.Error(), Path: path}
	var ext extender
	if errors.As(err, &ext) {
		out.Extensions = ext.Extensions()
	}
	return out
}

type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
