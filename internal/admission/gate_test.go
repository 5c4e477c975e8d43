package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGauge struct {
	mu     sync.Mutex
	values []float64
}

func (g *recordingGauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values = append(g.values, v)
}

func TestNewRejectsInvalidLimit(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	require.Error(t, err)
}

func TestTryAdmitRespectsLimit(t *testing.T) {
	t.Parallel()

	gauge := &recordingGauge{}
	g, err := New(2, WithGauge(gauge))
	require.NoError(t, err)

	assert.True(t, g.TryAdmit())
	assert.True(t, g.TryAdmit())
	assert.False(t, g.TryAdmit())
	assert.Equal(t, 2, g.InUse())

	g.Release()
	assert.True(t, g.TryAdmit())
	assert.Equal(t, []float64{1, 2, 1, 2}, gauge.values)
}

func TestReleaseWithoutAdmitPanics(t *testing.T) {
	t.Parallel()

	g, err := New(1)
	require.NoError(t, err)
	assert.Panics(t, g.Release)
	assert.Equal(t, 0, g.InUse())
}

func TestAdmitNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	g, err := New(2, WithBackoff(time.Millisecond))
	require.NoError(t, err)

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, g.Admit(context.Background())) {
				return
			}
			defer g.Release()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, 0, g.InUse())
}

func TestAdmitHonorsContext(t *testing.T) {
	t.Parallel()

	g, err := New(1, WithBackoff(5*time.Millisecond))
	require.NoError(t, err)
	require.True(t, g.TryAdmit())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = g.Admit(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.InUse())
}
