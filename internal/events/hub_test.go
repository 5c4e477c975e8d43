package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// TestHubBatchBySize verifies the hub flushes immediately once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(JobStarted))
	hub.Emit(sampleEvent(JobStarted))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 10, MaxBatchWait: 25 * time.Millisecond}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(JobStarted))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitBlocksUntilConsumed checks that a full buffer applies backpressure instead of dropping.
func TestHubEmitBlocksUntilConsumed(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 1, MaxBatchEvents: 1, MaxBatchWait: time.Minute}, sink)

	for range 50 {
		hub.Emit(sampleEvent(JobStarted))
	}
	require.NoError(t, hub.Close(context.Background()))

	total := 0
	for _, b := range sink.Batches() {
		total += len(b)
	}
	require.Equal(t, 50, total)
	require.True(t, sink.closed)
}

func TestHubPreservesOrder(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 3, MaxBatchWait: time.Millisecond}, sink)

	types := []Type{JobStarted, JobStateChanged, ScreenshotCompleted, JobCompleted}
	for _, typ := range types {
		hub.Emit(sampleEvent(typ))
	}
	require.NoError(t, hub.Close(context.Background()))

	var got []Type
	for _, b := range sink.Batches() {
		for _, evt := range b {
			got = append(got, evt.Type)
		}
	}
	require.Equal(t, types, got)
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 4, MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)

	hub.Emit(sampleEvent(JobStarted))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 1)

	// Emitting after close is a no-op.
	hub.Emit(sampleEvent(JobStarted))
	require.Len(t, sink.Batches(), 1)
}

func TestHubCloseDeliversInBatchSizedChunks(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, nil, sink)
	for range 5 {
		hub.Emit(sampleEvent(JobStarted))
	}
	require.NoError(t, hub.Close(context.Background()))

	sizes := make([]int, 0, 3)
	for _, b := range sink.Batches() {
		sizes = append(sizes, len(b))
	}
	require.Equal(t, []int{2, 2, 1}, sizes)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatchEvents: 1}, sink)
	hub.Emit(Event{Type: JobStarted})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	base := sampleEvent(JobStarted)
	require.NoError(t, base.Validate())

	failed := base
	failed.Type = JobFailedToStart
	failed.Job = capture.Job{}
	require.Error(t, failed.Validate())
	failed.Err = errors.New("rejected")
	require.NoError(t, failed.Validate())

	shot := base
	shot.Type = ScreenshotFailed
	shot.Artifact = capture.Artifact{ID: "a1"}
	require.Error(t, shot.Validate())

	unknown := base
	unknown.Type = "NOPE"
	require.Error(t, unknown.Validate())
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

func sampleEvent(typ Type) Event {
	return Event{
		BatchID:  UUIDToBytes(uuid.New()),
		TS:       time.Now(),
		Type:     typ,
		Job:      capture.Job{ID: "job-1", State: capture.JobStateQueued},
		Artifact: capture.Artifact{ID: "shot-1"},
	}
}
