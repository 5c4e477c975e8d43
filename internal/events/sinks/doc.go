// Package sinks contains events.Sink implementations: structured logs,
// Prometheus collectors, the batch history store, Pub/Sub notifications, and a
// channel callers can drain.
package sinks
