package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("batch record not found")

// JobStatus mirrors the batch_jobs status column.
type JobStatus string

// Job statuses persisted in batch_jobs.status.
const (
	JobRunning       JobStatus = "running"
	JobSucceeded     JobStatus = "succeeded"
	JobFailed        JobStatus = "failed"
	JobFailedToStart JobStatus = "failed_to_start"
)

// ScreenshotStatus mirrors the batch_screenshots status column.
type ScreenshotStatus string

// Screenshot statuses persisted in batch_screenshots.status.
const (
	ScreenshotSaved  ScreenshotStatus = "saved"
	ScreenshotFailed ScreenshotStatus = "failed"
)

// JobRecord models one row of batch_jobs.
type JobRecord struct {
	BatchID uuid.UUID
	// JobID is the remote job identifier; empty when submission failed.
	JobID    string
	URL      string
	Filename string
	// RemoteState is the last state reported by the service.
	RemoteState string
	Status      JobStatus
	Error       *string
	UpdatedAt   time.Time
}

// ScreenshotRecord models one row of batch_screenshots.
type ScreenshotRecord struct {
	BatchID       uuid.UUID
	JobID         string
	ScreenshotID  string
	Browser       string
	RemoteState   string
	Status        ScreenshotStatus
	ImagePath     string
	ThumbnailPath string
	Digest        string
	Error         *string
	RecordedAt    time.Time
}

// BatchRepository persists job and screenshot outcomes for a batch.
type BatchRepository interface {
	// UpsertJob inserts or updates the row keyed by (batch, job, url, filename).
	UpsertJob(ctx context.Context, rec JobRecord) error
	// RecordScreenshot inserts or replaces the row keyed by (batch, screenshot).
	RecordScreenshot(ctx context.Context, rec ScreenshotRecord) error
}

// BatchReader loads persisted batch history.
type BatchReader interface {
	ListJobs(ctx context.Context, batchID uuid.UUID) ([]JobRecord, error)
	ListScreenshots(ctx context.Context, batchID uuid.UUID) ([]ScreenshotRecord, error)
}
