//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestNATSKV(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bucket := "restgraph_test_" + uuid.NewString()[:8]
	defer func() { _ = js.DeleteKeyValue(context.Background(), bucket) }()

	c, err := NewNATSKV(ctx, js, bucket, time.Minute, nil)
	require.NoError(t, err)

	key := Key("test", "a")
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("value")))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", string(got))

	again, err := NewNATSKV(ctx, js, bucket, time.Minute, nil)
	require.NoError(t, err)
	_, ok, err = again.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
}
