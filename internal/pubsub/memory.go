package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hanpama/restgraph/internal/logging"
)

// Memory is an in-process PubSub. It is the default backend and the one the
// webhook endpoint feeds when no broker is configured.
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan any
	closed bool
	log    *slog.Logger
}

func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		subs: make(map[string]map[int]chan any),
		log:  logging.Component(logger, "pubsub.memory"),
	}
}

func (m *Memory) Subscribe(ctx context.Context, topic string) (<-chan any, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	ch := make(chan any, subscriberBuffer)
	if m.subs[topic] == nil {
		m.subs[topic] = make(map[int]chan any)
	}
	m.subs[topic][id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[topic][id]; !ok {
			return
		}
		delete(m.subs[topic], id)
		if len(m.subs[topic]) == 0 {
			delete(m.subs, topic)
		}
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) Publish(ctx context.Context, topic string, payload any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for id, ch := range m.subs[topic] {
		select {
		case ch <- payload:
		default:
			m.log.Warn("subscriber is behind, event dropped", "topic", topic, "subscriber", id)
		}
	}
	return nil
}

// Subscribers reports the number of open subscriptions on topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

// Close ends every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for topic, subs := range m.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(m.subs, topic)
	}
	return nil
}
