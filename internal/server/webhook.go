package server

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	"github.com/hanpama/restgraph/internal/logging"
	"github.com/hanpama/restgraph/internal/metric"
	"github.com/hanpama/restgraph/internal/pubsub"
)

// Webhook lets upstream services push subscription events: the body of a
// POST or PUT under Prefix is published to the topic named by the rest of
// the path, so POST /webhooks/orders:9 publishes to "orders:9".
type Webhook struct {
	PubSub       pubsub.PubSub
	Prefix       string
	MaxBodyBytes int64
	Logger       *slog.Logger
	Metrics      *metric.Metrics
}

// Topic returns the topic a request path publishes to, or false when the
// path is outside the prefix or names no topic.
func (wh *Webhook) Topic(path string) (string, bool) {
	prefix := "/" + strings.Trim(wh.Prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	rest, ok := strings.CutPrefix(path, prefix+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func (wh *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := logging.Component(logging.OrNop(wh.Logger), "webhook")
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.Header().Set("Allow", "POST, PUT")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}, false)
		return
	}
	topic, ok := wh.Topic(r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no topic in path"}, false)
		return
	}

	reader := io.Reader(r.Body)
	if wh.MaxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, wh.MaxBodyBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		wh.Metrics.Webhook("rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"}, false)
		return
	}
	if wh.MaxBodyBytes > 0 && int64(len(body)) > wh.MaxBodyBytes {
		wh.Metrics.Webhook("rejected")
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": errBodyTooLargeMessage}, false)
		return
	}

	var payload any
	if err := decodeJSON(body, &payload); err != nil {
		payload = string(body)
	}
	err = wh.PubSub.Publish(r.Context(), topic, payload)
	eventbus.Publish(r.Context(), events.WebhookPublished{Topic: topic, Bytes: len(body), Err: err})
	if err != nil {
		wh.Metrics.Webhook("failed")
		log.WarnContext(r.Context(), "publish failed", "topic", topic, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "publish failed"}, false)
		return
	}
	wh.Metrics.Webhook("published")
	log.DebugContext(r.Context(), "event published", "topic", topic, "bytes", len(body))
	writeJSON(w, http.StatusAccepted, map[string]string{"topic": topic}, false)
}
