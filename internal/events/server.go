// Package events defines the payloads published on the eventbus by the
// server, the upstream transport and the gateway.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the GraphQL endpoint receives a request. The
// publishing context carries the request ID.
type HTTPStart struct {
	Request *http.Request
}

type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// GraphQLStart is emitted before an operation runs. ID pairs it with its
// GraphQLFinish: the request ID over HTTP, connection and operation ID over
// WebSocket, where one connection runs many operations.
type GraphQLStart struct {
	ID            string
	Transport     string
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted once the operation is done. For subscriptions
// that is when the stream ends and Errors collects every event's errors.
type GraphQLFinish struct {
	ID            string
	Transport     string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// WebhookPublished is emitted after a webhook request was published (or
// failed to be) to its topic.
type WebhookPublished struct {
	Topic string
	Bytes int
	Err   error
}
