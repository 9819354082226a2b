package metric

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCacheCounters(t *testing.T) {
	reg := NewRegistry()
	reg.Metrics.CacheHit("memory")
	reg.Metrics.CacheHit("memory")
	reg.Metrics.CacheMiss("memory")

	require.Equal(t, 2.0, testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("memory", "hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("memory", "miss")))

	var nilMetrics *Metrics
	nilMetrics.CacheHit("memory")
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Metrics.UpstreamRequests.WithLabelValues("GET", "200").Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `restgraph_upstream_requests_total{code="200",method="GET"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}

func TestServerHelpers(t *testing.T) {
	reg := NewRegistry()
	m := reg.Metrics
	m.ObserveGraphQL("query", "ok", 10*time.Millisecond)
	m.ObserveGraphQL("", "error", time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(m.GraphQLRequests.WithLabelValues("query", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.GraphQLRequests.WithLabelValues("unknown", "error")))

	done := m.SubscriptionOpened()
	m.SubscriptionOpened()
	require.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSubscriptions))
	done()
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSubscriptions))

	m.Webhook("published")
	require.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("published")))

	var nilMetrics *Metrics
	nilMetrics.ObserveGraphQL("query", "ok", 0)
	nilMetrics.SubscriptionOpened()()
	nilMetrics.Webhook("failed")
}
