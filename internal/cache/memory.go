package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hanpama/restgraph/internal/metric"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process TTL store. A background goroutine evicts expired
// entries until Close is called.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	items   map[string]entry
	metrics *metric.Metrics
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

type MemoryOption func(*Memory)

// WithMetrics counts hits and misses under store "memory".
func WithMetrics(m *metric.Metrics) MemoryOption { return func(c *Memory) { c.metrics = m } }

// NewMemory creates a store whose entries live for ttl. A zero ttl keeps
// entries until the process exits.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	c := &Memory{
		ttl:   ttl,
		items: make(map[string]entry),
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	go c.cleanup()
	return c
}

func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		if ok {
			c.mu.Lock()
			if cur, still := c.items[key]; still && cur.expired(c.now()) {
				delete(c.items, key)
			}
			c.mu.Unlock()
		}
		c.metrics.CacheMiss("memory")
		return nil, false, nil
	}
	c.metrics.CacheHit("memory")
	return e.value, true, nil
}

func (c *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	e := entry{value: append([]byte(nil), value...)}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine. The store stays usable.
func (c *Memory) Close() error {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	return nil
}

func (c *Memory) cleanup() {
	defer close(c.done)
	if c.ttl <= 0 {
		<-c.stop
		return
	}
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Memory) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}
