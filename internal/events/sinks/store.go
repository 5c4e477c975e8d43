package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/events"
	"github.com/JakeFAU/batch-screenshots/internal/store"
)

// StoreSink persists job and screenshot outcomes via a store.BatchRepository.
// State-change events are collapsed so each job is written once per batch.
type StoreSink struct {
	repo   store.BatchRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.BatchRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the batch to the repository, returning the first error.
func (s *StoreSink) Consume(ctx context.Context, batch []events.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[string]store.JobRecord)
	var order []string

	for _, evt := range batch {
		switch evt.Type {
		case events.JobStarted, events.JobStateChanged:
			key := evt.Job.Key()
			if _, ok := pending[key]; !ok {
				order = append(order, key)
			}
			pending[key] = jobRecord(evt, store.JobRunning)
		case events.JobCompleted, events.JobFailed:
			status := store.JobSucceeded
			if evt.Type == events.JobFailed {
				status = store.JobFailed
			}
			key := evt.Job.Key()
			if _, ok := pending[key]; !ok {
				order = append(order, key)
			}
			pending[key] = jobRecord(evt, status)
		case events.JobFailedToStart:
			if err := s.repo.UpsertJob(ctx, jobRecord(evt, store.JobFailedToStart)); err != nil {
				return fmt.Errorf("upsert failed job: %w", err)
			}
		case events.ScreenshotCompleted:
			// ScreenshotCompleted follows every ScreenshotFailed and carries its error.
			if err := s.repo.RecordScreenshot(ctx, screenshotRecord(evt)); err != nil {
				return fmt.Errorf("record screenshot: %w", err)
			}
		}
	}

	for _, key := range order {
		if err := s.repo.UpsertJob(ctx, pending[key]); err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func jobRecord(evt events.Event, status store.JobStatus) store.JobRecord {
	rec := store.JobRecord{
		BatchID:     evt.BatchUUID(),
		JobID:       evt.Job.ID,
		URL:         evt.Unit.URL,
		Filename:    evt.Unit.Filename,
		RemoteState: string(evt.Job.State),
		Status:      status,
		UpdatedAt:   evt.TS,
	}
	if evt.Err != nil {
		msg := evt.Err.Error()
		rec.Error = &msg
	}
	return rec
}

func screenshotRecord(evt events.Event) store.ScreenshotRecord {
	rec := store.ScreenshotRecord{
		BatchID:       evt.BatchUUID(),
		JobID:         evt.Artifact.JobID,
		ScreenshotID:  evt.Artifact.ID,
		Browser:       evt.Artifact.Browser.String(),
		RemoteState:   string(evt.Artifact.State),
		Status:        store.ScreenshotSaved,
		ImagePath:     evt.ImagePath,
		ThumbnailPath: evt.ThumbnailPath,
		Digest:        evt.Digest,
		RecordedAt:    evt.TS,
	}
	if rec.JobID == "" {
		rec.JobID = evt.Job.ID
	}
	if evt.Err != nil {
		rec.Status = store.ScreenshotFailed
		msg := evt.ErrText()
		rec.Error = &msg
	}
	return rec
}
