//go:build integration

package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, ps PubSub, topic string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ch, err := ps.Subscribe(ctx, topic)
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, topic, map[string]any{"id": 7}))
	require.Equal(t, map[string]any{"id": json.Number("7")}, receive(t, ch))

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNATSRoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	roundTrip(t, NewNATS(nc, nil), "restgraph.test."+uuid.NewString())
}

func TestMQTTRoundTrip(t *testing.T) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		t.Skip("MQTT_BROKER not set")
	}
	ps, err := DialMQTT(broker, "restgraph-test-"+uuid.NewString()[:8], nil)
	require.NoError(t, err)
	defer ps.Close()
	roundTrip(t, ps, "restgraph/test/"+uuid.NewString())
}
