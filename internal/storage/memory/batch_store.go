package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

type jobKey struct {
	batch    uuid.UUID
	jobID    string
	url      string
	filename string
}

type shotKey struct {
	batch uuid.UUID
	id    string
}

// BatchStore is an in-memory store.BatchRepository and store.BatchReader.
type BatchStore struct {
	mu        sync.RWMutex
	jobs      map[jobKey]store.JobRecord
	jobOrder  []jobKey
	shots     map[shotKey]store.ScreenshotRecord
	shotOrder []shotKey
}

// NewBatchStore constructs a BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{
		jobs:  make(map[jobKey]store.JobRecord),
		shots: make(map[shotKey]store.ScreenshotRecord),
	}
}

// UpsertJob stores or replaces the job row.
func (s *BatchStore) UpsertJob(_ context.Context, rec store.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := jobKey{batch: rec.BatchID, jobID: rec.JobID, url: rec.URL, filename: rec.Filename}
	if _, ok := s.jobs[key]; !ok {
		s.jobOrder = append(s.jobOrder, key)
	}
	s.jobs[key] = rec
	return nil
}

// RecordScreenshot stores or replaces the screenshot row.
func (s *BatchStore) RecordScreenshot(_ context.Context, rec store.ScreenshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := shotKey{batch: rec.BatchID, id: rec.ScreenshotID}
	if _, ok := s.shots[key]; !ok {
		s.shotOrder = append(s.shotOrder, key)
	}
	s.shots[key] = rec
	return nil
}

// ListJobs returns job rows for a batch in first-write order.
func (s *BatchStore) ListJobs(_ context.Context, batchID uuid.UUID) ([]store.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.JobRecord
	for _, key := range s.jobOrder {
		if key.batch == batchID {
			out = append(out, s.jobs[key])
		}
	}
	return out, nil
}

// ListScreenshots returns screenshot rows for a batch in first-write order.
func (s *BatchStore) ListScreenshots(_ context.Context, batchID uuid.UUID) ([]store.ScreenshotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.ScreenshotRecord
	for _, key := range s.shotOrder {
		if key.batch == batchID {
			out = append(out, s.shots[key])
		}
	}
	return out, nil
}
