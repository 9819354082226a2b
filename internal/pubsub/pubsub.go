// Package pubsub delivers subscription events. Payloads travel as JSON on
// the wire backends; Memory passes values through untouched.
package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// PubSub publishes payloads to topics and streams them to subscribers.
// Implementations must be safe for concurrent use.
type PubSub interface {
	// Subscribe streams the payloads published to topic from now on. The
	// channel is closed once ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan any, error)
	Publish(ctx context.Context, topic string, payload any) error
}

var ErrClosed = errors.New("pubsub: closed")

// subscriberBuffer is the number of undelivered events a subscriber may
// fall behind before further events are dropped.
const subscriberBuffer = 64

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}
	return json.Marshal(payload)
}

// decode parses a wire payload as JSON. Payloads that are not JSON are
// delivered as strings.
func decode(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(data)
	}
	return v
}
