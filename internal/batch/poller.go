package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/events"
	"github.com/JakeFAU/batch-screenshots/internal/metrics"
)

// poll refreshes job on every tick until it reaches a terminal state or the
// status endpoint fails MaxPollErrors times in a row. JobStateChanged fires
// only when the reported state differs from the previous observation. Artifacts are handed to
// persistence goroutines the first time they are seen in a terminal state;
// poll joins those goroutines before returning.
func (r *batchRun) poll(ctx context.Context, job capture.Job, unit capture.CaptureUnit, logger *zap.Logger) (capture.Job, error) {
	var wg sync.WaitGroup
	defer wg.Wait()

	handled := make(map[string]struct{})
	current := job
	failures := 0

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return current, fmt.Errorf("poll job %s: %w", current.ID, ctx.Err())
		case <-ticker.C:
		}

		next, err := r.client.FetchStatus(ctx, current.ID)
		if err != nil {
			failures++
			metrics.ObservePollError()
			logger.Warn("status fetch failed",
				zap.Error(err),
				zap.Int("consecutive_failures", failures),
				zap.Int("max_failures", r.cfg.MaxPollErrors),
			)
			if failures >= r.cfg.MaxPollErrors {
				return current, fmt.Errorf("job %s: %w after %d consecutive failures: %w",
					current.ID, capture.ErrStatusUnavailable, failures, err)
			}
			continue
		}
		failures = 0

		if next.ID == "" {
			next.ID = current.ID
		}
		if next.State == capture.JobStateUnknown {
			logger.Warn("unrecognized job state, continuing to poll")
		}
		changed := next.State != current.State
		current = next
		r.jobs.put(current)
		if changed {
			r.emit(events.Event{Type: events.JobStateChanged, Job: current.Clone(), Unit: unit})
		}

		for _, artifact := range current.Artifacts {
			if !artifact.ReadyToHandle() {
				continue
			}
			if artifact.ID == "" {
				logger.Warn("skipping screenshot without id", zap.String("browser", artifact.Browser.String()))
				continue
			}
			if _, seen := handled[artifact.ID]; seen {
				continue
			}
			handled[artifact.ID] = struct{}{}
			if artifact.JobID == "" {
				artifact.JobID = current.ID
			}
			snapshot := current.Clone()
			wg.Go(func() { r.persist(ctx, snapshot, unit, artifact) })
		}

		if current.IsComplete() {
			return current, nil
		}
	}
}
