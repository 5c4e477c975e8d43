// Package events defines the lifecycle notifications raised while a batch runs
// and the Hub that batches them on a background goroutine and fans them out to
// pluggable sinks such as logs, Prometheus metrics, a batch history store, or
// a Pub/Sub topic.
package events
