package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

func TestUpsertJobExecutesInsert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewBatchStoreWithPool(mock, "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	msg := "poll exhausted"
	rec := store.JobRecord{
		BatchID:     uuid.MustParse("0190c6a0-0000-7000-8000-000000000001"),
		JobID:       "abc123",
		URL:         "https://example.com",
		Filename:    "home",
		RemoteState: "processing",
		Status:      store.JobFailed,
		Error:       &msg,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO batch_jobs").
		WithArgs(rec.BatchID, rec.JobID, rec.URL, rec.Filename, rec.RemoteState, "failed", rec.Error, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertJob(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordScreenshotWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewBatchStoreWithPool(mock, "shots")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO shots_screenshots").
		WillReturnError(errors.New("connection reset"))

	err = s.RecordScreenshot(context.Background(), store.ScreenshotRecord{ScreenshotID: "s1"})
	require.ErrorContains(t, err, "record screenshot")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewBatchStoreWithPool(mock, "batch")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batch_jobs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batch_screenshots").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewBatchStoreWithPool(mock, "batch")
	require.NoError(t, err)

	batch := uuid.MustParse("0190c6a0-0000-7000-8000-000000000002")
	now := time.Unix(1700000100, 0).UTC()
	rows := mock.NewRows([]string{"job_id", "url", "filename", "remote_state", "status", "error_message", "updated_at"}).
		AddRow("j1", "https://a.example", "a", "done", "succeeded", "", now).
		AddRow("", "https://b.example", "b", "", "failed_to_start", "401 Unauthorized", now)
	mock.ExpectQuery("SELECT (.+) FROM batch_jobs").WithArgs(batch).WillReturnRows(rows)

	jobs, err := s.ListJobs(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, store.JobSucceeded, jobs[0].Status)
	assert.Nil(t, jobs[0].Error)
	require.NotNil(t, jobs[1].Error)
	assert.Equal(t, "401 Unauthorized", *jobs[1].Error)
	assert.Equal(t, batch, jobs[1].BatchID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewBatchStoreWithPoolValidates(t *testing.T) {
	t.Parallel()

	_, err := NewBatchStoreWithPool(nil, "batch")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewBatchStoreWithPool(mock, "drop table;")
	require.Error(t, err)
}
