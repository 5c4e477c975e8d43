package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/store"
)

const historyTimeout = 3 * time.Second

// HistoryHandler exposes persisted batch outcomes.
type HistoryHandler struct {
	repo    store.BatchReader
	timeout time.Duration
	logger  *zap.Logger
}

// NewHistoryHandler wires the repository and logger.
func NewHistoryHandler(repo store.BatchReader, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{
		repo:    repo,
		timeout: historyTimeout,
		logger:  logger,
	}
}

// ListJobs handles GET /v1/batches/{batch_id}/jobs. It returns {"jobs": [...]}
// on success, 400 for malformed IDs, 503 when no repository is configured, or
// 500 if the repository call fails.
func (h *HistoryHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "batch history unavailable")
		return
	}
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	jobs, err := h.repo.ListJobs(ctx, batchID)
	if err != nil {
		h.logger.Error("list batch jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	out := make([]historyJobDTO, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, historyJobDTO{
			JobID:       j.JobID,
			URL:         j.URL,
			Filename:    j.Filename,
			RemoteState: j.RemoteState,
			Status:      string(j.Status),
			Error:       j.Error,
			UpdatedAt:   j.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// ListScreenshots handles GET /v1/batches/{batch_id}/screenshots.
func (h *HistoryHandler) ListScreenshots(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "batch history unavailable")
		return
	}
	batchID, err := parseBatchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	shots, err := h.repo.ListScreenshots(ctx, batchID)
	if err != nil {
		h.logger.Error("list batch screenshots failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list screenshots")
		return
	}
	out := make([]historyScreenshotDTO, 0, len(shots))
	for _, s := range shots {
		out = append(out, historyScreenshotDTO{
			JobID:         s.JobID,
			ScreenshotID:  s.ScreenshotID,
			Browser:       s.Browser,
			RemoteState:   s.RemoteState,
			Status:        string(s.Status),
			ImagePath:     s.ImagePath,
			ThumbnailPath: s.ThumbnailPath,
			Digest:        s.Digest,
			Error:         s.Error,
			RecordedAt:    s.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"screenshots": out})
}

type historyJobDTO struct {
	JobID       string    `json:"job_id,omitempty"`
	URL         string    `json:"url"`
	Filename    string    `json:"filename"`
	RemoteState string    `json:"remote_state,omitempty"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type historyScreenshotDTO struct {
	JobID         string    `json:"job_id"`
	ScreenshotID  string    `json:"screenshot_id"`
	Browser       string    `json:"browser"`
	RemoteState   string    `json:"remote_state"`
	Status        string    `json:"status"`
	ImagePath     string    `json:"image_path,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Digest        string    `json:"digest,omitempty"`
	Error         *string   `json:"error,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
