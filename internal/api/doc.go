// Package api hosts the HTTP status server for a running capture batch.
// Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/jobs, /v1/jobs/{job_id} and /v1/screenshots for live progress.
//   - GET /v1/notifications for the in-process notification log.
//   - GET /v1/batches/{batch_id}/jobs and /screenshots for persisted history
//     via the store.BatchReader interface.
package api
