package batch

import (
	"sync"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// jobSet keeps the latest snapshot of every job keyed by normalized ID,
// plus the insertion order for stable listings.
type jobSet struct {
	mu    sync.RWMutex
	byKey map[string]capture.Job
	order []string
}

func newJobSet() *jobSet {
	return &jobSet{byKey: make(map[string]capture.Job)}
}

// put inserts job or replaces the existing snapshot with the same ID.
func (s *jobSet) put(job capture.Job) {
	key := job.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byKey[key] = job.Clone()
}

func (s *jobSet) get(id string) (capture.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byKey[capture.JobKey(id)]
	if !ok {
		return capture.Job{}, false
	}
	return job.Clone(), true
}

func (s *jobSet) snapshot() []capture.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]capture.Job, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key].Clone())
	}
	return out
}

// unitIndex associates job IDs with the unit that produced them. Entries are
// written once after submission and only read afterwards.
type unitIndex struct {
	mu    sync.RWMutex
	units map[string]capture.CaptureUnit
}

func newUnitIndex() *unitIndex {
	return &unitIndex{units: make(map[string]capture.CaptureUnit)}
}

func (u *unitIndex) record(jobID string, unit capture.CaptureUnit) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := capture.JobKey(jobID)
	if _, ok := u.units[key]; ok {
		return
	}
	u.units[key] = unit
}

func (u *unitIndex) lookup(jobID string) (capture.CaptureUnit, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	unit, ok := u.units[capture.JobKey(jobID)]
	return unit, ok
}

// artifactLog is the append-only list of handled screenshots.
type artifactLog struct {
	mu    sync.Mutex
	items []capture.Artifact
}

func (l *artifactLog) append(a capture.Artifact) {
	l.mu.Lock()
	l.items = append(l.items, a)
	l.mu.Unlock()
}

func (l *artifactLog) snapshot() []capture.Artifact {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capture.Artifact(nil), l.items...)
}
