package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/metrics"
	"github.com/JakeFAU/batch-screenshots/internal/publisher/memory"
	"github.com/JakeFAU/batch-screenshots/internal/store"
)

const (
	defaultScreenshotLimit = 100
	maxScreenshotLimit     = 1000
	requestTimeout         = 30 * time.Second
)

// LiveView is the read side of a running orchestrator.
type LiveView interface {
	Jobs() []capture.Job
	Job(id string) (capture.Job, bool)
	Unit(jobID string) (capture.CaptureUnit, bool)
	CompletedScreenshots() []capture.Artifact
	SessionsInUse() int
}

// NotificationLog lists notifications kept in process.
type NotificationLog interface {
	Messages() []memory.PublishedMessage
	ByTopic(topic string) []memory.PublishedMessage
}

// Options configures optional Server collaborators.
type Options struct {
	// History serves persisted batches; nil disables the /v1/batches routes.
	History store.BatchReader
	// Notifications backs /v1/notifications when Pub/Sub is not configured.
	Notifications NotificationLog
	// APIKey, when non-empty, is required on every request.
	APIKey string
	Logger *zap.Logger
}

// Server exposes live batch progress over HTTP.
type Server struct {
	router        chi.Router
	live          LiveView
	history       *HistoryHandler
	notifications NotificationLog
	logger        *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(live LiveView, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		live:          live,
		history:       NewHistoryHandler(opts.History, logger),
		notifications: opts.Notifications,
		logger:        logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))
	if opts.APIKey != "" {
		r.Use(apiKeyMiddleware(opts.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Get("/screenshots", s.listScreenshots)
		r.Get("/notifications", s.listNotifications)
		r.Route("/batches/{batch_id}", func(r chi.Router) {
			r.Get("/jobs", s.history.ListJobs)
			r.Get("/screenshots", s.history.ListScreenshots)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.live == nil {
		writeError(w, http.StatusServiceUnavailable, "orchestrator unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"sessions_in_use": s.live.SessionsInUse(),
	})
}

// listJobs handles GET /v1/jobs?state=. Jobs are returned in submission order.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	var filter *capture.JobState
	if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
		state, ok := capture.ParseJobState(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid state")
			return
		}
		filter = &state
	}
	jobs := s.live.Jobs()
	out := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		if filter != nil && job.State != *filter {
			continue
		}
		out = append(out, s.toJobDTO(job, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.live.Job(chi.URLParam(r, "job_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": s.toJobDTO(job, true)})
}

// listScreenshots handles GET /v1/screenshots?limit=&offset= over the
// completed artifacts in completion order.
func (s *Server) listScreenshots(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultScreenshotLimit, maxScreenshotLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	all := s.live.CompletedScreenshots()
	total := len(all)
	start := min(offset, total)
	end := min(start+limit, total)
	out := make([]screenshotDTO, 0, end-start)
	for _, a := range all[start:end] {
		out = append(out, toScreenshotDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"screenshots": out,
		"total":       total,
	})
}

// listNotifications handles GET /v1/notifications?topic=.
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		writeError(w, http.StatusServiceUnavailable, "notification log unavailable")
		return
	}
	msgs := s.notifications.Messages()
	if topic := strings.TrimSpace(r.URL.Query().Get("topic")); topic != "" {
		msgs = s.notifications.ByTopic(topic)
	}
	if msgs == nil {
		msgs = []memory.PublishedMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": msgs})
}

func (s *Server) toJobDTO(job capture.Job, withScreenshots bool) jobDTO {
	dto := jobDTO{
		ID:    job.ID,
		State: string(job.State),
	}
	if unit, ok := s.live.Unit(job.ID); ok {
		dto.URL = unit.URL
		dto.Filename = unit.Filename
	}
	for _, a := range job.Artifacts {
		dto.Screenshots.Total++
		switch a.State {
		case capture.ArtifactStateDone:
			dto.Screenshots.Done++
		case capture.ArtifactStateTimedOut:
			dto.Screenshots.TimedOut++
		}
		if withScreenshots {
			dto.Items = append(dto.Items, toScreenshotDTO(a))
		}
	}
	return dto
}

func toScreenshotDTO(a capture.Artifact) screenshotDTO {
	return screenshotDTO{
		ID:           a.ID,
		JobID:        a.JobID,
		Browser:      a.Browser.String(),
		State:        string(a.State),
		ImageURL:     a.ImageURL,
		ThumbnailURL: a.ThumbnailURL,
		CreatedAt:    a.CreatedAt,
	}
}

type jobDTO struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	URL         string          `json:"url,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	Screenshots countsDTO       `json:"screenshot_counts"`
	Items       []screenshotDTO `json:"screenshots,omitempty"`
}

type countsDTO struct {
	Total    int `json:"total"`
	Done     int `json:"done"`
	TimedOut int `json:"timed_out"`
}

type screenshotDTO struct {
	ID           string     `json:"id"`
	JobID        string     `json:"job_id"`
	Browser      string     `json:"browser"`
	State        string     `json:"state"`
	ImageURL     string     `json:"image_url,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

func parseBatchID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "batch_id")
	if raw == "" {
		return uuid.UUID{}, errors.New("batch_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid batch_id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
