package httptp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hanpama/restgraph/internal/cache"
	"github.com/hanpama/restgraph/internal/metric"
)

// Options configures the HTTP transport.
//
// Defaults:
//   - Client:  a dedicated *http.Client
//   - Timeout: 30s (used only if the request context has no deadline)
//   - Cache:   none; responses are cached only when a store is set
//   - CacheTTL: 1m
type Options struct {
	Client   *http.Client
	Timeout  time.Duration
	Cache    cache.Store
	CacheTTL time.Duration
	Metrics  *metric.Metrics
	Logger   *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Timeout:  30 * time.Second,
		CacheTTL: time.Minute,
	}
}

func WithClient(c *http.Client) Option     { return func(o *Options) { o.Client = c } }
func WithTimeout(d time.Duration) Option   { return func(o *Options) { o.Timeout = d } }
func WithMetrics(m *metric.Metrics) Option { return func(o *Options) { o.Metrics = m } }
func WithLogger(l *slog.Logger) Option     { return func(o *Options) { o.Logger = l } }
func WithCache(s cache.Store, ttl time.Duration) Option {
	return func(o *Options) {
		o.Cache = s
		if ttl > 0 {
			o.CacheTTL = ttl
		}
	}
}
