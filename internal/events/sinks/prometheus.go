package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/batch-screenshots/internal/events"
)

// PrometheusSink exports batch lifecycle metrics. It owns the collectors for
// jobs started/completed/running and per-state screenshot counters.
type PrometheusSink struct {
	jobsStarted     prometheus.Counter
	jobsCompleted   *prometheus.CounterVec
	jobsRunning     prometheus.Gauge
	jobRuntime      *prometheus.HistogramVec
	stateChanges    *prometheus.CounterVec
	screenshots     *prometheus.CounterVec
	screenshotBytes prometheus.Counter

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screenshots_jobs_started_total",
			Help: "Total remote jobs accepted by the service.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screenshots_jobs_completed_total",
			Help: "Total jobs finished partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "screenshots_jobs_running",
			Help: "Current number of jobs being polled.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screenshots_job_runtime_seconds",
			Help:    "Wall time from submission to terminal state.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"result"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screenshots_job_state_observations_total",
			Help: "Status polls partitioned by reported job state.",
		}, []string{"state"}),
		screenshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screenshots_artifacts_total",
			Help: "Handled screenshots partitioned by remote state and result.",
		}, []string{"state", "result"}),
		screenshotBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screenshots_artifact_bytes_total",
			Help: "Bytes of screenshot images written locally.",
		}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.stateChanges,
		s.screenshots,
		s.screenshotBytes,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register event collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Type {
	case events.JobStarted:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.Job.Key()) {
			s.jobsRunning.Inc()
		}
	case events.JobStateChanged:
		s.stateChanges.WithLabelValues(string(evt.Job.State)).Inc()
	case events.JobCompleted:
		s.finishJob(evt, "success")
	case events.JobFailed:
		s.finishJob(evt, "error")
	case events.JobFailedToStart:
		s.jobsCompleted.WithLabelValues("rejected").Inc()
	case events.ScreenshotFailed:
		s.screenshots.WithLabelValues(string(evt.Artifact.State), "error").Inc()
	case events.ScreenshotCompleted:
		s.screenshots.WithLabelValues(string(evt.Artifact.State), "handled").Inc()
		if evt.Bytes > 0 {
			s.screenshotBytes.Add(float64(evt.Bytes))
		}
	}
}

func (s *PrometheusSink) finishJob(evt events.Event, result string) {
	s.jobsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.Job.Key()) {
		s.jobsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
