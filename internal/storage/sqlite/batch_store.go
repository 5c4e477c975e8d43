// Package sqlite keeps batch history in a local SQLite file for runs without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// BatchStore implements store.BatchRepository and store.BatchReader on SQLite.
type BatchStore struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open creates (or reuses) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*BatchStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	s := &BatchStore{conn: conn, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *BatchStore) Close() error {
	return s.conn.Close()
}

func (s *BatchStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		body, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if _, err := s.conn.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", e.Name(), err)
		}
		s.logger.Debug("applied migration", zap.String("name", e.Name()))
	}
	return nil
}

// UpsertJob inserts or updates the job row.
func (s *BatchStore) UpsertJob(ctx context.Context, rec store.JobRecord) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO batch_jobs (batch_id, job_id, url, filename, remote_state, status, error_message, updated_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT (batch_id, job_id, url, filename) DO UPDATE
SET remote_state = excluded.remote_state,
    status = excluded.status,
    error_message = excluded.error_message,
    updated_at = excluded.updated_at`,
		rec.BatchID.String(),
		rec.JobID,
		rec.URL,
		rec.Filename,
		rec.RemoteState,
		string(rec.Status),
		nullString(rec.Error),
		rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// RecordScreenshot inserts or replaces the screenshot row.
func (s *BatchStore) RecordScreenshot(ctx context.Context, rec store.ScreenshotRecord) error {
	_, err := s.conn.ExecContext(ctx, `
INSERT INTO batch_screenshots (batch_id, screenshot_id, job_id, browser, remote_state, status, image_path, thumbnail_path, sha256, error_message, recorded_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (batch_id, screenshot_id) DO UPDATE
SET remote_state = excluded.remote_state,
    status = excluded.status,
    image_path = excluded.image_path,
    thumbnail_path = excluded.thumbnail_path,
    sha256 = excluded.sha256,
    error_message = excluded.error_message,
    recorded_at = excluded.recorded_at`,
		rec.BatchID.String(),
		rec.ScreenshotID,
		rec.JobID,
		rec.Browser,
		rec.RemoteState,
		string(rec.Status),
		rec.ImagePath,
		rec.ThumbnailPath,
		rec.Digest,
		nullString(rec.Error),
		rec.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record screenshot: %w", err)
	}
	return nil
}

// ListJobs returns the job rows of a batch in update order.
func (s *BatchStore) ListJobs(ctx context.Context, batchID uuid.UUID) ([]store.JobRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT job_id, url, filename, remote_state, status, error_message, updated_at
FROM batch_jobs WHERE batch_id = ? ORDER BY updated_at, rowid`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []store.JobRecord
	for rows.Next() {
		rec := store.JobRecord{BatchID: batchID}
		var status string
		var errMsg sql.NullString
		var updated int64
		if err := rows.Scan(&rec.JobID, &rec.URL, &rec.Filename, &rec.RemoteState, &status, &errMsg, &updated); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		rec.Status = store.JobStatus(status)
		rec.Error = fromNull(errMsg)
		rec.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

// ListScreenshots returns the screenshot rows of a batch in record order.
func (s *BatchStore) ListScreenshots(ctx context.Context, batchID uuid.UUID) ([]store.ScreenshotRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
SELECT screenshot_id, job_id, browser, remote_state, status, image_path, thumbnail_path, sha256, error_message, recorded_at
FROM batch_screenshots WHERE batch_id = ? ORDER BY recorded_at, rowid`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []store.ScreenshotRecord
	for rows.Next() {
		rec := store.ScreenshotRecord{BatchID: batchID}
		var status string
		var errMsg sql.NullString
		var recorded int64
		if err := rows.Scan(
			&rec.ScreenshotID,
			&rec.JobID,
			&rec.Browser,
			&rec.RemoteState,
			&status,
			&rec.ImagePath,
			&rec.ThumbnailPath,
			&rec.Digest,
			&errMsg,
			&recorded,
		); err != nil {
			return nil, fmt.Errorf("scan screenshot row: %w", err)
		}
		rec.Status = store.ScreenshotStatus(status)
		rec.Error = fromNull(errMsg)
		rec.RecordedAt = time.Unix(0, recorded).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenshot rows: %w", err)
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
