package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

func openTestStore(t *testing.T) *BatchStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history", "batches.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertJobRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	batch := uuid.New()
	start := time.Unix(1700000000, 0).UTC()

	rec := store.JobRecord{
		BatchID:     batch,
		JobID:       "abc",
		URL:         "https://example.com",
		Filename:    "home",
		RemoteState: "queued",
		Status:      store.JobRunning,
		UpdatedAt:   start,
	}
	require.NoError(t, s.UpsertJob(ctx, rec))

	msg := "job status unavailable"
	rec.RemoteState = "processing"
	rec.Status = store.JobFailed
	rec.Error = &msg
	rec.UpdatedAt = start.Add(time.Minute)
	require.NoError(t, s.UpsertJob(ctx, rec))

	jobs, err := s.ListJobs(ctx, batch)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, store.JobFailed, jobs[0].Status)
	assert.Equal(t, "processing", jobs[0].RemoteState)
	require.NotNil(t, jobs[0].Error)
	assert.Equal(t, msg, *jobs[0].Error)
	assert.Equal(t, rec.UpdatedAt, jobs[0].UpdatedAt)

	others, err := s.ListJobs(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestRecordScreenshotRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	batch := uuid.New()
	now := time.Unix(1700000500, 0).UTC()

	require.NoError(t, s.RecordScreenshot(ctx, store.ScreenshotRecord{
		BatchID:      batch,
		JobID:        "abc",
		ScreenshotID: "s1",
		Browser:      "chrome v120.0 on Windows 10",
		RemoteState:  "done",
		Status:       store.ScreenshotSaved,
		ImagePath:    "/out/home.png",
		Digest:       "deadbeef",
		RecordedAt:   now,
	}))
	require.NoError(t, s.RecordScreenshot(ctx, store.ScreenshotRecord{
		BatchID:      batch,
		JobID:        "abc",
		ScreenshotID: "s2",
		RemoteState:  "timed-out",
		Status:       store.ScreenshotSaved,
		RecordedAt:   now.Add(time.Second),
	}))

	shots, err := s.ListScreenshots(ctx, batch)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, "s1", shots[0].ScreenshotID)
	assert.Equal(t, "deadbeef", shots[0].Digest)
	assert.Nil(t, shots[0].Error)
	assert.Equal(t, "timed-out", shots[1].RemoteState)
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batches.db")
	first, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
