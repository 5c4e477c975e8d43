// Command screenshots captures a configured set of pages across many
// browsers through the BrowserStack Screenshots API.
//
// Flow:
//   - Configuration is read from an optional YAML file plus SCREENSHOTS_*
//     environment variables; a .env file is loaded first so credentials can
//     stay out of the config file.
//   - Each configured job is split into chunks of at most 25 browsers. A chunk
//     waits for one of batch.session_limit slots, is submitted, and is polled
//     every batch.poll_interval until the remote job is done or timed out.
//   - Screenshots are written below -root as
//     {os}/{os_version}/{browser}/{browser_version}/{resolution}/{filename}.png
//     (or {os}/{os_version}/{device}/{orientation}/ for devices) as soon as
//     each one finishes. Timed-out screenshots leave an empty marker file.
//   - Lifecycle events go through an event hub to the log, Prometheus, the
//     batch history store (memory, SQLite or Postgres) and optionally Pub/Sub.
//     Saved files can be mirrored to a GCS bucket.
//   - With server.enabled the status API serves /v1/jobs, /v1/screenshots and
//     /metrics while the batch runs; -hold keeps it up afterwards.
//
// Usage:
//
//	screenshots -config batch.yaml -root ./out
//	screenshots -list-browsers
package main
