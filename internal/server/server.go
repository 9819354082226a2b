package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/ast"

	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	executor "github.com/hanpama/restgraph/internal/executor"
	"github.com/hanpama/restgraph/internal/httprt"
	"github.com/hanpama/restgraph/internal/introspection"
	language "github.com/hanpama/restgraph/internal/language"
	"github.com/hanpama/restgraph/internal/logging"
	"github.com/hanpama/restgraph/internal/metric"
	reqid "github.com/hanpama/restgraph/internal/reqid"
	schema "github.com/hanpama/restgraph/internal/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses and validates requests, runs the executor, and formats
// responses per GraphQL spec. WebSocket upgrades are served as
// subscriptions.
type Handler struct {
	exec       *executor.Executor
	validation *ast.Schema
	opt        Options
	log        *slog.Logger
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout. Subscriptions are not bounded by it.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ForwardHeaders lists HTTP headers exposed to operation templates as
	// ${context.headers.<lower-case name>}. Default is none.
	ForwardHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	// Introspection serves __schema and __type when true.
	Introspection bool

	Logger  *slog.Logger
	Metrics *metric.Metrics
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func WithGraphiQL(enable bool) Option      { return func(o *Options) { o.GraphiQL = enable } }
func WithIntrospection(enable bool) Option { return func(o *Options) { o.Introspection = enable } }
func WithLogger(l *slog.Logger) Option     { return func(o *Options) { o.Logger = l } }
func WithMetrics(m *metric.Metrics) Option { return func(o *Options) { o.Metrics = m } }

// New creates a GraphQL handler for runtime and schema. Queries are
// validated against sch; when introspection is on, the runtime is wrapped
// so __schema and __type resolve.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true, Introspection: true}
	for _, f := range opts {
		f(&op)
	}
	validation, err := schema.Load(sch)
	if err != nil {
		return nil, err
	}
	execSchema, execRuntime := sch, runtime
	if op.Introspection {
		w, err := introspection.Wrap(runtime, sch)
		if err != nil {
			return nil, err
		}
		execSchema, execRuntime = w.Schema, w.Runtime
	}
	return &Handler{
		exec:       executor.NewExecutor(execRuntime, execSchema),
		validation: validation,
		opt:        op,
		log:        logging.Component(logging.OrNop(op.Logger), "server"),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}

	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(nil, "method not allowed"), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	ctx = httprt.WithRequestValues(ctx, requestValues(r.Header, h.opt.ForwardHeaders, nil))

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(nil, berr.Message), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		op := make([]specResult, len(batch))
		for i := range batch {
			op[i], _ = h.executeOne(ctx, r.Method, batch[i])
		}
		writeJSON(w, status, op, h.opt.Pretty)
		return
	}

	res, st := h.executeOne(ctx, r.Method, req)
	if st != 0 {
		status = st
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// requestValues builds what ${context.*} placeholders read: the allowed
// request headers under "headers" and, for WebSocket clients, the
// connection_init payload under "connectionParams".
func requestValues(header http.Header, forward []string, params map[string]any) map[string]any {
	headers := map[string]any{}
	for _, name := range forward {
		if v := header.Values(name); len(v) > 0 {
			headers[strings.ToLower(name)] = strings.Join(v, ",")
		}
	}
	out := map[string]any{"headers": headers}
	if params != nil {
		out["connectionParams"] = params
	}
	return out
}

// prepare parses and validates a request and picks its operation.
func (h *Handler) prepare(req GraphQLRequest) (*language.QueryDocument, *language.OperationDefinition, []specError) {
	doc, errs := language.ParseAndValidate(h.validation, req.Query)
	if len(errs) > 0 {
		return nil, nil, fromGQLErrors(errs)
	}
	opDef, err := language.SelectOperation(doc, req.OperationName)
	if err != nil {
		return nil, nil, []specError{{Message: err.Error()}}
	}
	if !h.opt.Introspection && selectsIntrospection(doc, opDef.SelectionSet) {
		return nil, nil, []specError{{Message: "introspection is disabled"}}
	}
	return doc, opDef, nil
}

// executeOne runs a single request. The returned status is non-zero when
// the request must not be answered with 200.
func (h *Handler) executeOne(ctx context.Context, method string, req GraphQLRequest) (specResult, int) {
	doc, opDef, errs := h.prepare(req)
	if errs != nil {
		h.opt.Metrics.ObserveGraphQL("", "invalid", 0)
		return specResult{Errors: errs}, 0
	}
	opType := string(opDef.Operation)
	if method == http.MethodGet && opDef.Operation != language.Query {
		return errorResponse(nil, "only queries may be sent with GET"), http.StatusMethodNotAllowed
	}

	rid, _ := reqid.FromContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{ID: rid, Transport: "http", Query: req.Query, OperationName: opDef.Name, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, opDef.Name, req.Variables, nil)
	errList := make([]error, len(result.Errors))
	for i := range result.Errors {
		errList[i] = result.Errors[i]
	}
	d := time.Since(start)
	eventbus.Publish(ctx, events.GraphQLFinish{
		ID:            rid,
		Transport:     "http",
		OperationName: opDef.Name,
		OperationType: opType,
		Errors:        errList,
		Duration:      d,
	})
	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "error"
	}
	h.opt.Metrics.ObserveGraphQL(opType, outcome, d)
	h.log.DebugContext(ctx, "graphql executed", "operation", opType, "name", opDef.Name,
		"errors", len(result.Errors), "duration", d)
	return toSpecResult(result), 0
}

// selectsIntrospection reports whether the selection asks for __schema or
// __type at the root, directly or through fragments.
func selectsIntrospection(doc *language.QueryDocument, set language.SelectionSet) bool {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if s.Name == "__schema" || s.Name == "__type" {
				return true
			}
		case *language.InlineFragment:
			if selectsIntrospection(doc, s.SelectionSet) {
				return true
			}
		case *language.FragmentSpread:
			if f := doc.Fragments.ForName(s.Name); f != nil && selectsIntrospection(doc, f.SelectionSet) {
				return true
			}
		}
	}
	return false
}
