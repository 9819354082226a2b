// Package metric holds the Prometheus collectors restgraph exports.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restgraph"

// Metrics are the collectors shared by the server, the upstream transport
// and the cache.
type Metrics struct {
	GraphQLRequests     *prometheus.CounterVec
	GraphQLDuration     *prometheus.HistogramVec
	UpstreamRequests    *prometheus.CounterVec
	UpstreamDuration    *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	WebhookEvents       *prometheus.CounterVec
}

// Registry owns a private Prometheus registry with the Go runtime and
// process collectors plus Metrics.
type Registry struct {
	reg     *prometheus.Registry
	Metrics *Metrics
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.GraphQLRequests,
		m.GraphQLDuration,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.CacheLookups,
		m.ActiveSubscriptions,
		m.WebhookEvents,
	)
	return &Registry{reg: reg, Metrics: m}
}

func newMetrics() *Metrics {
	return &Metrics{
		GraphQLRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "requests_total",
			Help:      "GraphQL operations executed, by operation type and outcome.",
		}, []string{"operation", "outcome"}),
		GraphQLDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "duration_seconds",
			Help:      "GraphQL operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream HTTP requests, by method and status code.",
		}, []string{"method", "code"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Upstream HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups, by store and result (hit or miss).",
		}, []string{"store", "result"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "active_subscriptions",
			Help:      "Open GraphQL subscription streams.",
		}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook payloads published, by outcome.",
		}, []string{"outcome"}),
	}
}

// Prometheus returns the underlying registry.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// CacheHit and CacheMiss are nil-safe so stores can run without metrics.
func (m *Metrics) CacheHit(store string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(store, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(store string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(store, "miss").Inc()
	}
}

// ObserveGraphQL records one executed operation.
func (m *Metrics) ObserveGraphQL(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.GraphQLRequests.WithLabelValues(operation, outcome).Inc()
	m.GraphQLDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// SubscriptionOpened returns the func that marks the stream closed.
func (m *Metrics) SubscriptionOpened() (closed func()) {
	if m == nil {
		return func() {}
	}
	m.ActiveSubscriptions.Inc()
	return m.ActiveSubscriptions.Dec
}

func (m *Metrics) Webhook(outcome string) {
	if m != nil {
		m.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}
