// Package gateway turns a configured source into an executable GraphQL
// schema: it synthesizes and resolves the composite JSON Schema, composes
// the GraphQL types, plans placeholder arguments and binds the runtime.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hanpama/restgraph/internal/argplan"
	"github.com/hanpama/restgraph/internal/cache"
	"github.com/hanpama/restgraph/internal/compose"
	"github.com/hanpama/restgraph/internal/config"
	"github.com/hanpama/restgraph/internal/errs"
	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	"github.com/hanpama/restgraph/internal/executor"
	"github.com/hanpama/restgraph/internal/httprt"
	"github.com/hanpama/restgraph/internal/httptp"
	"github.com/hanpama/restgraph/internal/introspection"
	"github.com/hanpama/restgraph/internal/jsonschema"
	"github.com/hanpama/restgraph/internal/logging"
	"github.com/hanpama/restgraph/internal/metric"
	"github.com/hanpama/restgraph/internal/pubsub"
	"github.com/hanpama/restgraph/internal/schema"
	"github.com/hanpama/restgraph/internal/synth"
)

// Deps are the collaborators a build wires into the runtime. All are
// optional except PubSub, which subscription operations need.
type Deps struct {
	// Cache memoizes synthesized composite schemas across builds and
	// processes. Nil disables it.
	Cache   cache.Store
	Fetcher httptp.Fetcher
	PubSub  pubsub.PubSub
	Env     map[string]string
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// Executable is the result of a build. It is immutable and may be shared by
// concurrent requests.
type Executable struct {
	Schema      *schema.Schema
	Runtime     executor.SubscriptionRuntime
	Diagnostics []compose.Diagnostic
}

// SDL renders the schema without introspection types.
func (e *Executable) SDL() string { return schema.Render(e.Schema) }

// WithIntrospection returns a copy that also serves __schema and __type.
func (e *Executable) WithIntrospection() (*Executable, error) {
	w, err := introspection.Wrap(e.Runtime, e.Schema)
	if err != nil {
		return nil, err
	}
	return &Executable{Schema: w.Schema, Runtime: w.Runtime, Diagnostics: e.Diagnostics}, nil
}

// Executor returns an executor for the executable.
func (e *Executable) Executor() *executor.Executor {
	return executor.NewExecutor(e.Runtime, e.Schema)
}

// Gateway builds executables and remembers them by configuration hash.
type Gateway struct {
	deps Deps
	log  *slog.Logger

	mu   sync.Mutex
	memo map[string]*Executable
}

func New(deps Deps) *Gateway {
	return &Gateway{
		deps: deps,
		log:  logging.Component(logging.OrNop(deps.Logger), "gateway"),
		memo: make(map[string]*Executable),
	}
}

// Build is a one-shot build without a process-level memo.
func Build(ctx context.Context, src *config.Source, deps Deps) (*Executable, error) {
	return New(deps).Build(ctx, src)
}

// Build returns the executable for src. Repeated builds of an identical
// source return the same Executable. Failures leave nothing cached.
func (g *Gateway) Build(ctx context.Context, src *config.Source) (exe *Executable, err error) {
	if src == nil {
		return nil, errs.Configuration("", nil, "no source configured")
	}
	start := time.Now()
	eventbus.Publish(ctx, events.SchemaBuildStart{Source: src.Name, Operations: len(src.Operations)})
	finish := events.SchemaBuildFinish{Source: src.Name}
	defer func() {
		finish.Err = err
		finish.Duration = time.Since(start)
		if exe != nil {
			finish.Types = len(exe.Schema.Types)
			finish.Diagnostics = len(exe.Diagnostics)
		}
		eventbus.Publish(ctx, finish)
	}()

	if err := src.Validate(); err != nil {
		return nil, errs.Configuration("", err, "invalid source")
	}
	key, err := Hash(src)
	if err != nil {
		return nil, errs.Configuration("", err, "hash source")
	}

	g.mu.Lock()
	memo := g.memo[key]
	g.mu.Unlock()
	if memo != nil {
		g.log.DebugContext(ctx, "executable memoized", "source", src.Name)
		finish.Cached = true
		return memo, nil
	}

	opts := synth.Options{Loader: g.loader(src), Logger: g.deps.Logger}
	raw, cached, err := g.composite(ctx, key, src, opts)
	if err != nil {
		return nil, err
	}
	finish.Cached = cached
	doc, err := synth.Resolve(ctx, raw, opts)
	if err != nil {
		return nil, err
	}
	s, diags, err := compose.Compose(doc, compose.Options{Logger: g.deps.Logger})
	if err != nil {
		return nil, errs.Configuration("", err, "compose")
	}
	for _, d := range diags {
		g.log.DebugContext(ctx, "compose diagnostic", "message", d.Message, "pointer", d.Pointer)
	}
	if err := argplan.Plan(s, src.Operations, src); err != nil {
		return nil, err
	}
	if _, err := schema.Load(s); err != nil {
		return nil, errs.Configuration("", err, "generated schema is invalid")
	}

	fetcher := g.deps.Fetcher
	if fetcher == nil {
		fetcher = httptp.New(httptp.WithLogger(g.deps.Logger), httptp.WithMetrics(g.deps.Metrics))
	}
	binder := httprt.NewBinder(httprt.Options{
		Source:  src,
		Schema:  s,
		Fetcher: fetcher,
		PubSub:  g.deps.PubSub,
		Env:     g.deps.Env,
		Logger:  g.deps.Logger,
	})
	for _, op := range src.Operations {
		if err := binder.Bind(op); err != nil {
			return nil, err
		}
	}

	exe = &Executable{Schema: s, Runtime: binder.Build(), Diagnostics: diags}
	g.mu.Lock()
	if prev := g.memo[key]; prev != nil {
		exe = prev
	} else {
		g.memo[key] = exe
	}
	g.mu.Unlock()
	g.log.InfoContext(ctx, "schema built", "source", src.Name, "operations", len(src.Operations),
		"types", len(s.Types), "diagnostics", len(diags), "cached", cached)
	return exe, nil
}

// composite returns the synthesized composite schema, from the cache store
// when it holds one for key.
func (g *Gateway) composite(ctx context.Context, key string, src *config.Source, opts synth.Options) (jsonschema.Raw, bool, error) {
	store := g.deps.Cache
	storeKey := cache.Key("schema", key)
	if store != nil {
		data, ok, err := store.Get(ctx, storeKey)
		switch {
		case err != nil:
			g.log.WarnContext(ctx, "schema cache get failed", "error", err)
		case ok:
			if v, err := jsonschema.Decode(data, false); err == nil {
				if raw, ok := v.(map[string]any); ok {
					g.deps.Metrics.CacheHit("schema")
					return raw, true, nil
				}
			}
			g.log.WarnContext(ctx, "schema cache entry is unreadable")
		}
		g.deps.Metrics.CacheMiss("schema")
	}

	raw, err := synth.Synthesize(ctx, src.Operations, opts)
	if err != nil {
		return nil, false, err
	}
	if store != nil {
		data, err := json.Marshal(raw)
		if err == nil {
			err = store.Set(ctx, storeKey, data)
		}
		if err != nil {
			g.log.WarnContext(ctx, "schema cache set failed", "error", err)
		}
	}
	return raw, false, nil
}

func (g *Gateway) loader(src *config.Source) *jsonschema.Loader {
	l := &jsonschema.Loader{BaseDir: src.BaseDir}
	if g.deps.Fetcher != nil {
		l.HTTP = doer{g.deps.Fetcher}
	}
	return l
}

// doer lets the schema loader fetch remote samples through the upstream
// transport.
type doer struct{ f httptp.Fetcher }

func (d doer) Do(req *http.Request) (*http.Response, error) { return d.f.Do(req.Context(), req) }

// Hash is the canonical hash of a source. encoding/json sorts map keys, so
// equal configurations hash equally regardless of how they were loaded.
func Hash(src *config.Source) (string, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return "", fmt.Errorf("encode source: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
