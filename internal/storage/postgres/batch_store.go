// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

var validTablePrefix = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for batch history.
type Config struct {
	DSN             string
	TablePrefix     string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// BatchStore writes job and screenshot rows into Postgres.
type BatchStore struct {
	pool       pool
	jobsTable  string
	shotsTable string
}

// NewBatchStore connects to Postgres using cfg.
func NewBatchStore(ctx context.Context, cfg Config) (*BatchStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewBatchStoreWithPool(p, cfg.TablePrefix)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewBatchStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBatchStoreWithPool(p pool, prefix string) (*BatchStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if prefix == "" {
		prefix = "batch"
	}
	if !validTablePrefix.MatchString(prefix) {
		return nil, fmt.Errorf("invalid table prefix %q", prefix)
	}
	return &BatchStore{
		pool:       p,
		jobsTable:  prefix + "_jobs",
		shotsTable: prefix + "_screenshots",
	}, nil
}

// Close releases the underlying pool resources.
func (s *BatchStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables when missing.
func (s *BatchStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	batch_id      UUID        NOT NULL,
	job_id        TEXT        NOT NULL,
	url           TEXT        NOT NULL,
	filename      TEXT        NOT NULL,
	remote_state  TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	error_message TEXT,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (batch_id, job_id, url, filename)
)`, s.jobsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	batch_id       UUID        NOT NULL,
	screenshot_id  TEXT        NOT NULL,
	job_id         TEXT        NOT NULL,
	browser        TEXT        NOT NULL,
	remote_state   TEXT        NOT NULL,
	status         TEXT        NOT NULL,
	image_path     TEXT        NOT NULL,
	thumbnail_path TEXT        NOT NULL,
	sha256         TEXT        NOT NULL,
	error_message  TEXT,
	recorded_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (batch_id, screenshot_id)
)`, s.shotsTable),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertJob inserts or updates the job row.
func (s *BatchStore) UpsertJob(ctx context.Context, rec store.JobRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (batch_id, job_id, url, filename, remote_state, status, error_message, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (batch_id, job_id, url, filename) DO UPDATE
SET remote_state = EXCLUDED.remote_state,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at`, s.jobsTable)
	_, err := s.pool.Exec(ctx, query,
		rec.BatchID,
		rec.JobID,
		rec.URL,
		rec.Filename,
		rec.RemoteState,
		string(rec.Status),
		rec.Error,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// RecordScreenshot inserts or replaces the screenshot row.
func (s *BatchStore) RecordScreenshot(ctx context.Context, rec store.ScreenshotRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (batch_id, screenshot_id, job_id, browser, remote_state, status, image_path, thumbnail_path, sha256, error_message, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (batch_id, screenshot_id) DO UPDATE
SET remote_state = EXCLUDED.remote_state,
	status = EXCLUDED.status,
	image_path = EXCLUDED.image_path,
	thumbnail_path = EXCLUDED.thumbnail_path,
	sha256 = EXCLUDED.sha256,
	error_message = EXCLUDED.error_message,
	recorded_at = EXCLUDED.recorded_at`, s.shotsTable)
	_, err := s.pool.Exec(ctx, query,
		rec.BatchID,
		rec.ScreenshotID,
		rec.JobID,
		rec.Browser,
		rec.RemoteState,
		string(rec.Status),
		rec.ImagePath,
		rec.ThumbnailPath,
		rec.Digest,
		rec.Error,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record screenshot: %w", err)
	}
	return nil
}

// ListJobs returns the job rows of a batch ordered by last update.
func (s *BatchStore) ListJobs(ctx context.Context, batchID uuid.UUID) ([]store.JobRecord, error) {
	query := fmt.Sprintf(`
SELECT job_id, url, filename, remote_state, status, COALESCE(error_message, ''), updated_at
FROM %s
WHERE batch_id = $1
ORDER BY updated_at`, s.jobsTable)
	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []store.JobRecord
	for rows.Next() {
		rec := store.JobRecord{BatchID: batchID}
		var status, errMsg string
		if err := rows.Scan(&rec.JobID, &rec.URL, &rec.Filename, &rec.RemoteState, &status, &errMsg, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		rec.Status = store.JobStatus(status)
		rec.Error = optional(errMsg)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

// ListScreenshots returns the screenshot rows of a batch ordered by record time.
func (s *BatchStore) ListScreenshots(ctx context.Context, batchID uuid.UUID) ([]store.ScreenshotRecord, error) {
	query := fmt.Sprintf(`
SELECT screenshot_id, job_id, browser, remote_state, status, image_path, thumbnail_path, sha256, COALESCE(error_message, ''), recorded_at
FROM %s
WHERE batch_id = $1
ORDER BY recorded_at`, s.shotsTable)
	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}
	defer rows.Close()

	var out []store.ScreenshotRecord
	for rows.Next() {
		rec := store.ScreenshotRecord{BatchID: batchID}
		var status, errMsg string
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
			&rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan screenshot row: %w", err)
		}
		rec.Status = store.ScreenshotStatus(status)
		rec.Error = optional(errMsg)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate screenshot rows: %w", err)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
