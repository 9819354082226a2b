package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ps := NewMemory(nil)

	a, err := ps.Subscribe(ctx, "orders")
	require.NoError(t, err)
	b, err := ps.Subscribe(ctx, "orders")
	require.NoError(t, err)
	other, err := ps.Subscribe(ctx, "users")
	require.NoError(t, err)

	payload := map[string]any{"id": "1"}
	require.NoError(t, ps.Publish(ctx, "orders", payload))
	require.Equal(t, payload, receive(t, a))
	require.Equal(t, payload, receive(t, b))
	require.Empty(t, other)
}

func TestMemoryUnsubscribeOnCancel(t *testing.T) {
	ps := NewMemory(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := ps.Subscribe(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, 1, ps.Subscribers("t"))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 0, ps.Subscribers("t"))
	require.NoError(t, ps.Publish(context.Background(), "t", 1))
}

func TestMemoryDropsWhenBehind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ps := NewMemory(nil)
	ch, err := ps.Subscribe(ctx, "t")
	require.NoError(t, err)
	for i := 0; i < subscriberBuffer+10; i++ {
		require.NoError(t, ps.Publish(ctx, "t", i))
	}
	require.Len(t, ch, subscriberBuffer)
	require.Equal(t, 0, receive(t, ch))
}

func TestMemoryClose(t *testing.T) {
	ps := NewMemory(nil)
	ch, err := ps.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, ps.Close())
	_, ok := <-ch
	require.False(t, ok)
	require.ErrorIs(t, ps.Publish(context.Background(), "t", 1), ErrClosed)
	_, err = ps.Subscribe(context.Background(), "t")
	require.ErrorIs(t, err, ErrClosed)
}

func TestDecode(t *testing.T) {
	require.Equal(t, map[string]any{"n": json.Number("1")}, decode([]byte(`{"n":1}`)))
	require.Equal(t, "plain text", decode([]byte("plain text")))
	require.Equal(t, "1 2", decode([]byte("1 2")))

	data, err := encode(map[string]any{"a": true})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":true}`, string(data))
	data, err = encode([]byte("raw"))
	require.NoError(t, err)
	require.Equal(t, "raw", string(data))
}
