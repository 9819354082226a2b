package events

import "time"

// HTTPClientStart is emitted before an upstream HTTP request.
// Call identifies the request across the start and finish events.
type HTTPClientStart struct {
	Call   string
	Method string
	URL    string
	Field  string
}

// HTTPClientFinish is emitted after an upstream HTTP request completes.
// Status is zero when no response was received.
type HTTPClientFinish struct {
	Call     string
	Method   string
	URL      string
	Field    string
	Status   int
	Cached   bool
	Err      error
	Duration time.Duration
}
