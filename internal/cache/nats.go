package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/hanpama/restgraph/internal/metric"
)

// NATSKV stores entries in a JetStream key-value bucket. The bucket TTL
// expires entries, so several gateway instances share one cache.
type NATSKV struct {
	kv      jetstream.KeyValue
	metrics *metric.Metrics
}

// NewNATSKV opens bucket, creating it with the given TTL when it does not
// exist yet. An existing bucket keeps its own TTL.
func NewNATSKV(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration, m *metric.Metrics) (*NATSKV, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return &NATSKV{kv: kv, metrics: m}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("cache: open bucket %s: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "restgraph response and schema cache",
		TTL:         ttl,
	})
	if err != nil {
		if errors.Is(err, jetstream.ErrBucketExists) {
			// created concurrently by another instance
			if kv, err = js.KeyValue(ctx, bucket); err == nil {
				return &NATSKV{kv: kv, metrics: m}, nil
			}
		}
		return nil, fmt.Errorf("cache: create bucket %s: %w", bucket, err)
	}
	return &NATSKV{kv: kv, metrics: m}, nil
}

func (c *NATSKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			c.metrics.CacheMiss("nats")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	c.metrics.CacheHit("nats")
	return e.Value(), true, nil
}

func (c *NATSKV) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, err := c.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}
