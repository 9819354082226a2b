// Package errs classifies the failures raised while building and executing a
// restgraph schema. Build-time failures abort the whole build; execution
// failures stay local to the GraphQL field that produced them.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for handling purposes.
type Kind int

const (
	// KindConfiguration marks invalid or unusable operation configuration.
	KindConfiguration Kind = iota + 1
	// KindSchemaResolution marks a JSON Schema that could not be dereferenced.
	KindSchemaResolution
	// KindUpstreamData marks an upstream body that could not be interpreted.
	KindUpstreamData
	// KindUpstreamApplication marks an error object reported by the upstream.
	KindUpstreamApplication
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindSchemaResolution:
		return "schema_resolution"
	case KindUpstreamData:
		return "upstream_data"
	case KindUpstreamApplication:
		return "upstream_application"
	default:
		return "unknown"
	}
}

// Error is a classified error. Attrs carries the original fields of an
// upstream error object and is exposed as GraphQL error extensions.
type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
	Attrs   map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		b.WriteString(e.Message)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Extensions returns a copy of the attributes carried over from the source
// error object.
func (e *Error) Extensions() map[string]any {
	if len(e.Attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(e.Attrs))
	for k, v := range e.Attrs {
		out[k] = v
	}
	return out
}

// Aggregate groups the normalized entries of an upstream `errors` array.
type Aggregate struct {
	Errors []*Error
}

func (a *Aggregate) Error() string {
	msgs := make([]string, len(a.Errors))
	for i, e := range a.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (a *Aggregate) Unwrap() []error {
	out := make([]error, len(a.Errors))
	for i, e := range a.Errors {
		out[i] = e
	}
	return out
}

// Extensions lists every entry under "errors" so no upstream detail is lost
// when the aggregate becomes a single GraphQL error.
func (a *Aggregate) Extensions() map[string]any {
	entries := make([]any, len(a.Errors))
	for i, e := range a.Errors {
		entry := e.Extensions()
		if entry == nil {
			entry = map[string]any{}
		}
		entry["message"] = e.Message
		entries[i] = entry
	}
	return map[string]any{"errors": entries}
}

// Configuration returns a configuration error for the given field.
func Configuration(field string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

// SchemaResolution wraps a dereferencing failure.
func SchemaResolution(op string, err error) *Error {
	return &Error{Kind: KindSchemaResolution, Op: op, Message: "schema resolution failed", Err: err}
}

// UpstreamData reports a body that could not be used as the field's value.
// The raw text becomes the message.
func UpstreamData(field, text string) *Error {
	return &Error{Kind: KindUpstreamData, Field: field, Message: text}
}

// UpstreamApplication builds an error from an upstream error object.
func UpstreamApplication(message string, attrs map[string]any) *Error {
	return &Error{Kind: KindUpstreamApplication, Message: message, Attrs: attrs}
}

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries a classified error of kind k.
func Is(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

func IsConfiguration(err error) bool    { return Is(err, KindConfiguration) }
func IsSchemaResolution(err error) bool { return Is(err, KindSchemaResolution) }
func IsUpstreamData(err error) bool     { return Is(err, KindUpstreamData) }

// IsUpstreamApplication also matches aggregates.
func IsUpstreamApplication(err error) bool {
	var agg *Aggregate
	if errors.As(err, &agg) {
		return true
	}
	return Is(err, KindUpstreamApplication)
}
