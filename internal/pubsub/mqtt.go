package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hanpama/restgraph/internal/logging"
)

// MQTT bridges topics to an MQTT broker through a connected paho client.
type MQTT struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	log     *slog.Logger
}

func NewMQTT(client mqtt.Client, logger *slog.Logger) *MQTT {
	return &MQTT{client: client, qos: 1, timeout: 10 * time.Second, log: logging.Component(logger, "pubsub.mqtt")}
}

// DialMQTT connects a paho client to broker (tcp://host:1883).
func DialMQTT(broker, clientID string, logger *slog.Logger) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("pubsub: mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("pubsub: mqtt connect to %s: %w", broker, err)
	}
	return NewMQTT(client, logger), nil
}

func (m *MQTT) wait(tok mqtt.Token, what, topic string) error {
	if !tok.WaitTimeout(m.timeout) {
		return fmt.Errorf("pubsub: mqtt %s %s timed out", what, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("pubsub: mqtt %s %s: %w", what, topic, err)
	}
	return nil
}

func (m *MQTT) Subscribe(ctx context.Context, topic string) (<-chan any, error) {
	events := make(chan any, subscriberBuffer)
	var mu sync.Mutex
	closed := false
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case events <- decode(msg.Payload()):
		default:
			m.log.Warn("subscriber is behind, event dropped", "topic", msg.Topic())
		}
	}
	if err := m.wait(m.client.Subscribe(topic, m.qos, handler), "subscribe", topic); err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		if err := m.wait(m.client.Unsubscribe(topic), "unsubscribe", topic); err != nil {
			m.log.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
		mu.Lock()
		closed = true
		close(events)
		mu.Unlock()
	}()
	return events, nil
}

func (m *MQTT) Publish(ctx context.Context, topic string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("pubsub: encode payload for %s: %w", topic, err)
	}
	return m.wait(m.client.Publish(topic, m.qos, false, data), "publish", topic)
}

// Close disconnects the client, waiting briefly for in-flight work.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
