package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub. Zero values take the
// package defaults.
type Config struct {
	// BufferSize is the capacity of the inbound queue (1024).
	BufferSize int
	// MaxBatchEvents delivers as soon as this many events are pending (100).
	MaxBatchEvents int
	// MaxBatchWait bounds how long a partial batch waits for company (250ms).
	MaxBatchWait time.Duration
	// SinkTimeout bounds each Consume call (10s).
	SinkTimeout time.Duration
	// BaseContext parents every sink call.
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultBufferSize     = 1024
	defaultMaxBatchEvents = 100
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.MaxBatchEvents <= 0 {
		c.MaxBatchEvents = defaultMaxBatchEvents
	}
	if c.MaxBatchWait <= 0 {
		c.MaxBatchWait = defaultMaxBatchWait
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = defaultSinkTimeout
	}
	if c.BaseContext == nil {
		c.BaseContext = context.Background()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Hub is the single ordered path from the orchestrator to every Sink. One
// goroutine owns the pending batch, so sinks observe events in the order
// they were emitted.
type Hub struct {
	cfg   Config
	sinks []Sink
	in    chan Event
	stop  chan struct{}
	done  chan struct{}

	closing  sync.Once
	closeCtx context.Context
}

// NewHub starts the delivery goroutine for sinks. Nil sinks are ignored.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:   cfg,
		sinks: slices.DeleteFunc(slices.Clone(sinks), func(s Sink) bool { return s == nil }),
		in:    make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.run()
	return h
}

// Emit queues evt for delivery, blocking while the queue is full. Invalid
// events and events emitted after Close are dropped.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	select {
	case <-h.stop:
		return
	default:
	}
	if err := evt.Validate(); err != nil {
		h.cfg.Logger.Debug("discarding invalid event", zap.Error(err))
		return
	}
	select {
	case h.in <- evt:
	case <-h.stop:
		h.cfg.Logger.Warn("event emitted after hub close", zap.String("type", string(evt.Type)))
	}
}

// Close delivers everything already queued, closes the sinks with ctx and
// waits for the delivery goroutine to exit.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closing.Do(func() {
		h.closeCtx = ctx
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.done)

	pending := make([]Event, 0, h.cfg.MaxBatchEvents)
	// flushAt is nil while nothing is pending.
	var flushAt <-chan time.Time
	for {
		select {
		case evt := <-h.in:
			pending = append(pending, evt)
			switch {
			case len(pending) >= h.cfg.MaxBatchEvents:
				pending = h.deliver(pending)
				flushAt = nil
			case flushAt == nil:
				flushAt = time.After(h.cfg.MaxBatchWait)
			}
		case <-flushAt:
			pending = h.deliver(pending)
			flushAt = nil
		case <-h.stop:
			h.shutdown(pending)
			return
		}
	}
}

// shutdown empties the queue without blocking, delivers what is left in
// MaxBatchEvents-sized chunks and closes the sinks.
func (h *Hub) shutdown(pending []Event) {
	for queued := true; queued; {
		select {
		case evt := <-h.in:
			pending = append(pending, evt)
		default:
			queued = false
		}
	}
	for chunk := range slices.Chunk(pending, h.cfg.MaxBatchEvents) {
		h.deliver(chunk)
	}
	for _, sink := range h.sinks {
		if err := sink.Close(h.closeCtx); err != nil {
			h.cfg.Logger.Warn("event sink close failed", zap.Error(err))
		}
	}
}

// deliver hands a copy of batch to every sink and returns batch emptied for
// reuse.
func (h *Hub) deliver(batch []Event) []Event {
	if len(batch) == 0 {
		return batch
	}
	out := slices.Clone(batch)
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.cfg.Logger.Warn("event sink consume failed", zap.Error(err))
		}
		cancel()
	}
	return batch[:0]
}
