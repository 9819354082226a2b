package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/hanpama/restgraph/internal/logging"
)

// NATS bridges topics to NATS subjects on a core connection.
type NATS struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNATS(conn *nats.Conn, logger *slog.Logger) *NATS {
	return &NATS{conn: conn, log: logging.Component(logger, "pubsub.nats")}
}

func (n *NATS) Subscribe(ctx context.Context, topic string) (<-chan any, error) {
	events := make(chan any, subscriberBuffer)
	var mu sync.Mutex
	closed := false
	sub, err := n.conn.Subscribe(topic, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case events <- decode(msg.Data):
		default:
			n.log.Warn("subscriber is behind, event dropped", "topic", msg.Subject)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub: nats subscribe %s: %w", topic, err)
	}
	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			n.log.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
		mu.Lock()
		closed = true
		close(events)
		mu.Unlock()
	}()
	return events, nil
}

func (n *NATS) Publish(ctx context.Context, topic string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("pubsub: encode payload for %s: %w", topic, err)
	}
	if err := n.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("pubsub: nats publish %s: %w", topic, err)
	}
	return nil
}
