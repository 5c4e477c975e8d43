// Package admission bounds the number of concurrently running remote jobs.
package admission

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBackoff is the wait between admission attempts when the gate is full.
const DefaultBackoff = time.Second

// Gauge receives the number of slots in use after every change.
type Gauge interface {
	Set(float64)
}

// Gate is a counting admission control with a fixed capacity. The counter is
// read without the lock first so a full gate rejects callers cheaply; the
// increment itself always happens under the mutex.
type Gate struct {
	limit   int64
	backoff time.Duration
	gauge   Gauge

	mu    sync.Mutex
	inUse atomic.Int64
}

// Option customizes a Gate.
type Option func(*Gate)

// WithBackoff overrides the retry interval used by Admit.
func WithBackoff(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.backoff = d
		}
	}
}

// WithGauge reports occupancy to g.
func WithGauge(gauge Gauge) Option {
	return func(g *Gate) { g.gauge = gauge }
}

// New returns a gate admitting at most limit concurrent holders.
func New(limit int, opts ...Option) (*Gate, error) {
	if limit < 1 {
		return nil, fmt.Errorf("admission limit must be >= 1, got %d", limit)
	}
	g := &Gate{limit: int64(limit), backoff: DefaultBackoff}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TryAdmit claims a slot if one is free.
func (g *Gate) TryAdmit() bool {
	if g.inUse.Load() >= g.limit {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inUse.Load() >= g.limit {
		return false
	}
	g.report(g.inUse.Add(1))
	return true
}

// Release returns a slot. Releasing more than was admitted panics.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.inUse.Add(-1)
	if n < 0 {
		g.inUse.Add(1)
		panic("admission: release without matching admit")
	}
	g.report(n)
}

// Admit blocks until a slot is claimed or ctx is done.
func (g *Gate) Admit(ctx context.Context) error {
	if g.TryAdmit() {
		return nil
	}
	timer := time.NewTimer(g.backoff)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for admission: %w", ctx.Err())
		case <-timer.C:
			if g.TryAdmit() {
				return nil
			}
			timer.Reset(g.backoff)
		}
	}
}

// InUse returns the number of held slots.
func (g *Gate) InUse() int {
	return int(g.inUse.Load())
}

// Limit returns the capacity.
func (g *Gate) Limit() int {
	return int(g.limit)
}

func (g *Gate) report(n int64) {
	if g.gauge != nil {
		g.gauge.Set(float64(n))
	}
}
