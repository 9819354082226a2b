package httprt

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	"github.com/hanpama/restgraph/internal/httptp"
	"github.com/hanpama/restgraph/internal/jsonschema"
	"github.com/hanpama/restgraph/internal/logging"
	"github.com/hanpama/restgraph/internal/pubsub"
	"github.com/hanpama/restgraph/internal/schema"
)

// Options are shared by every binding of a Binder.
type Options struct {
	Source  *config.Source
	Schema  *schema.Schema
	Fetcher httptp.Fetcher
	// PubSub is required only when a pubsub-kind operation is bound.
	PubSub pubsub.PubSub
	// Env backs ${env.*} placeholders. Nothing reads the process
	// environment unless the caller puts it here.
	Env    map[string]string
	Logger *slog.Logger
}

type fieldKey struct {
	objectType string
	field      string
}

// binding is the frozen resolver of one operation.
type binding struct {
	op     config.Operation
	md     config.Metadata
	field  *schema.Field
	method string
}

func (b *binding) pubsub() bool { return b.op.IsPubSub() }

// Binder accumulates one binding per operation. Build freezes them into a
// Runtime; later Bind calls do not affect runtimes already built.
type Binder struct {
	opts     Options
	bindings map[fieldKey]*binding
	log      *slog.Logger
}

func NewBinder(opts Options) *Binder {
	if opts.Source == nil {
		opts.Source = &config.Source{}
	}
	return &Binder{
		opts:     opts,
		bindings: make(map[fieldKey]*binding),
		log:      logging.Component(opts.Logger, "httprt"),
	}
}

// Bind attaches op to its root field. The field must already exist in the
// schema.
func (b *Binder) Bind(op config.Operation) error {
	md := op.Metadata()
	root := b.opts.Schema.Types[md.RootTypeName]
	if root == nil {
		return errs.Configuration(op.Field, nil, "root type %s is missing", md.RootTypeName)
	}
	name := jsonschema.FieldName(md.FieldName)
	field := root.Field(name)
	if field == nil {
		return errs.Configuration(op.Field, nil, "field %s.%s is missing", md.RootTypeName, name)
	}
	key := fieldKey{md.RootTypeName, name}
	if _, dup := b.bindings[key]; dup {
		return errs.Configuration(op.Field, nil, "%s.%s is bound twice", md.RootTypeName, name)
	}
	if op.IsPubSub() && b.opts.PubSub == nil {
		return errs.Configuration(op.Field, nil, "pubsub topic %q needs a pubsub backend", op.PubSubTopic)
	}
	b.bindings[key] = &binding{op: op, md: md, field: field, method: md.HTTPMethod}
	b.log.Debug("bound operation", "field", key.objectType+"."+key.field,
		"kind", kindOf(op), "method", md.HTTPMethod, "path", op.Path, "topic", op.PubSubTopic)
	return nil
}

func kindOf(op config.Operation) string {
	if op.IsPubSub() {
		return "pubsub"
	}
	return "http"
}

// Build freezes the bindings into a Runtime.
func (b *Binder) Build() *Runtime {
	frozen := make(map[fieldKey]*binding, len(b.bindings))
	for k, v := range b.bindings {
		frozen[k] = v
	}
	fetcher := b.opts.Fetcher
	if fetcher == nil {
		fetcher = httptp.New(httptp.WithLogger(b.opts.Logger))
	}
	return &Runtime{
		source:   b.opts.Source,
		schema:   b.opts.Schema,
		fetcher:  fetcher,
		pubsub:   b.opts.PubSub,
		env:      b.opts.Env,
		bindings: frozen,
		log:      b.log,
	}
}

var bodiless = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

var withBody = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func checkMethod(field, method string) error {
	m := strings.ToUpper(method)
	if bodiless[m] || withBody[m] {
		return nil
	}
	return errs.Configuration(field, nil, "unsupported HTTP method %q", method)
}

func (k fieldKey) String() string { return fmt.Sprintf("%s.%s", k.objectType, k.field) }
