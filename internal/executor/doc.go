// Package executor implements a breadth-first, batch-friendly GraphQL
// executor with explicit runtime hooks for synchronous resolution, depth-wise
// batching of asynchronous work, abstract-type resolution and leaf
// serialization.
//
// # Execution model
//
// The executor works level by level. Within a depth it expands synchronous
// fields immediately through Runtime.ResolveSync and queues every field with
// schema.Field.Async set. When the depth is exhausted the queue is handed to
// Runtime.BatchResolveAsync in one call, results are completed into the
// response tree at their paths, and completion may queue the next depth.
//
// Root fields backed by upstream requests are async; projections of an
// upstream JSON value are sync. A query touching N root operations therefore
// produces one batch with N tasks, which the runtime is free to run
// concurrently.
//
// # Null propagation
//
// A null produced for a Non-Null position propagates to the nearest nullable
// ancestor. Synchronous completion returns nil up the call stack. Async tasks
// carry the path of that ancestor ("bubble") and null it in the response tree
// when they complete; queued tasks below a nulled path are dropped before the
// next batch is issued. Root fields absorb their own nulls, so data is never
// nulled as a whole.
//
// # Subscriptions
//
// Subscribe opens the event stream of the single root field through
// SubscriptionRuntime and executes the root selection set once per event.
//
// # Errors
//
// Resolver and completion errors are converted with LocatedError. Errors
// that expose an Extensions() map keep it in the response.
package executor
