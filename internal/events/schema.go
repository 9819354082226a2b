package events

import "time"

// SchemaBuildStart is emitted before the gateway builds a schema.
type SchemaBuildStart struct {
	Source     string
	Operations int
}

// SchemaBuildFinish is emitted after a schema build. Cached reports that
// the composed document came from the cache.
type SchemaBuildFinish struct {
	Source      string
	Types       int
	Diagnostics int
	Cached      bool
	Err         error
	Duration    time.Duration
}
