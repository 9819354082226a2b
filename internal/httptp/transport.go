// Package httptp issues upstream HTTP requests for the runtime, with
// deadlines, response caching, metrics and client events.
package httptp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanpama/restgraph/internal/cache"
	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	"github.com/hanpama/restgraph/internal/logging"
)

// Fetcher performs one HTTP request. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f FetcherFunc) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

type fieldKey struct{}

// WithField records the GraphQL field a request is made for. It only labels
// logs and events.
func WithField(ctx context.Context, field string) context.Context {
	return context.WithValue(ctx, fieldKey{}, field)
}

func fieldFrom(ctx context.Context) string {
	f, _ := ctx.Value(fieldKey{}).(string)
	return f
}

// Transport is the production Fetcher. Response bodies are fully buffered
// before Do returns. GET and HEAD responses with a 2xx status are memoized in
// the cache store, keyed by method, URL and sorted headers.
type Transport struct {
	opts *Options
	log  *slog.Logger
}

var _ Fetcher = (*Transport)(nil)

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return &Transport{opts: o, log: logging.Component(o.Logger, "httptp")}
}

func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if _, ok := ctx.Deadline(); !ok && t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	call := uuid.NewString()
	field := fieldFrom(ctx)
	url := req.URL.String()
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPClientStart{Call: call, Method: req.Method, URL: url, Field: field})

	resp, cached, err := t.do(ctx, req)

	finish := events.HTTPClientFinish{Call: call, Method: req.Method, URL: url, Field: field, Cached: cached, Err: err, Duration: time.Since(start)}
	if resp != nil {
		finish.Status = resp.StatusCode
	}
	eventbus.Publish(ctx, finish)
	if m := t.opts.Metrics; m != nil && !cached {
		code := "error"
		if resp != nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.UpstreamRequests.WithLabelValues(req.Method, code).Inc()
		m.UpstreamDuration.WithLabelValues(req.Method).Observe(finish.Duration.Seconds())
	}
	t.log.Debug("upstream request", "method", req.Method, "url", url, "field", field,
		"status", finish.Status, "cached", cached, "duration", finish.Duration, "error", err)
	return resp, err
}

func cacheable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func (t *Transport) do(ctx context.Context, req *http.Request) (*http.Response, bool, error) {
	var key string
	if t.opts.Cache != nil && cacheable(req.Method) {
		key = Signature(req)
		if resp, ok := t.lookup(ctx, key, req); ok {
			return resp, true, nil
		}
	}

	resp, err := t.opts.Client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, false, err
	}
	// The body is read here, while the deadline set by Do is still live.
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if key != "" && resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		t.store(ctx, key, resp, body)
	}
	return resp, false, nil
}

// entry is the cached form of a response.
type entry struct {
	Status  int         `json:"status"`
	Header  http.Header `json:"header"`
	Body    []byte      `json:"body"`
	Expires time.Time   `json:"expires"`
}

func (t *Transport) lookup(ctx context.Context, key string, req *http.Request) (*http.Response, bool) {
	data, ok, err := t.opts.Cache.Get(ctx, key)
	if err != nil {
		t.log.Warn("cache get failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil || time.Now().After(e.Expires) {
		return nil, false
	}
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}, true
}

func (t *Transport) store(ctx context.Context, key string, resp *http.Response, body []byte) {
	data, err := json.Marshal(entry{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Body:    body,
		Expires: time.Now().Add(t.opts.CacheTTL),
	})
	if err == nil {
		err = t.opts.Cache.Set(ctx, key, data)
	}
	if err != nil {
		t.log.Warn("cache set failed", "error", err)
	}
}

// Signature is the cache key of a request: method, URL and the sorted
// header lines.
func Signature(req *http.Request) string {
	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, strings.ToLower(name)+": "+strings.Join(req.Header.Values(name), ","))
	}
	return cache.Key("http", req.Method, req.URL.String(), strings.Join(lines, "\n"))
}
