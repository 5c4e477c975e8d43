package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

func TestBatchStoreUpsertsJobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewBatchStore()
	batch := uuid.New()
	other := uuid.New()
	now := time.Now().UTC()

	rec := store.JobRecord{BatchID: batch, JobID: "j1", URL: "https://a", Filename: "a", Status: store.JobRunning, UpdatedAt: now}
	require.NoError(t, s.UpsertJob(ctx, rec))
	rec.Status = store.JobSucceeded
	require.NoError(t, s.UpsertJob(ctx, rec))
	require.NoError(t, s.UpsertJob(ctx, store.JobRecord{BatchID: other, JobID: "j2"}))

	jobs, err := s.ListJobs(ctx, batch)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, store.JobSucceeded, jobs[0].Status)
}

func TestBatchStoreRecordsScreenshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewBatchStore()
	batch := uuid.New()

	require.NoError(t, s.RecordScreenshot(ctx, store.ScreenshotRecord{BatchID: batch, ScreenshotID: "s1", Status: store.ScreenshotSaved}))
	require.NoError(t, s.RecordScreenshot(ctx, store.ScreenshotRecord{BatchID: batch, ScreenshotID: "s2", Status: store.ScreenshotFailed}))
	require.NoError(t, s.RecordScreenshot(ctx, store.ScreenshotRecord{BatchID: batch, ScreenshotID: "s1", Status: store.ScreenshotSaved, Digest: "d"}))

	shots, err := s.ListScreenshots(ctx, batch)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "s1", shots[0].ScreenshotID)
	assert.Equal(t, "d", shots[0].Digest)
	assert.Equal(t, "s2", shots[1].ScreenshotID)
}
