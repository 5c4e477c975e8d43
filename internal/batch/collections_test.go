package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

func TestJobSet_ReplacesInPlace(t *testing.T) {
	t.Parallel()

	s := newJobSet()
	s.put(capture.Job{ID: "B", State: capture.JobStateQueued})
	s.put(capture.Job{ID: "a", State: capture.JobStateQueued})
	s.put(capture.Job{ID: "b", State: capture.JobStateDone})

	snap := s.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, capture.JobStateDone, snap[0].State)
	assert.Equal(t, "a", snap[1].ID)

	got, ok := s.get(" A ")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
	_, ok = s.get("missing")
	assert.False(t, ok)
}

func TestJobSet_SnapshotsAreCopies(t *testing.T) {
	t.Parallel()

	s := newJobSet()
	s.put(capture.Job{ID: "a", Artifacts: []capture.Artifact{{ID: "1"}}})
	snap := s.snapshot()
	snap[0].Artifacts[0].ID = "mutated"

	got, _ := s.get("a")
	assert.Equal(t, "1", got.Artifacts[0].ID)
}

func TestUnitIndex_WriteOnce(t *testing.T) {
	t.Parallel()

	idx := newUnitIndex()
	idx.record("JOB", capture.CaptureUnit{Filename: "first"})
	idx.record("job", capture.CaptureUnit{Filename: "second"})

	unit, ok := idx.lookup("Job")
	require.True(t, ok)
	assert.Equal(t, "first", unit.Filename)
}
