package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/batch-screenshots/internal/events"
)

// ChannelSink forwards every event to a channel and closes it when the hub
// shuts down. Consumers must drain C or the hub stalls.
type ChannelSink struct {
	ch   chan events.Event
	once sync.Once
}

// NewChannelSink returns a sink whose channel has the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan events.Event, max(buffer, 0))}
}

// C returns the receive side of the channel.
func (s *ChannelSink) C() <-chan events.Event {
	return s.ch
}

// Consume sends each event, giving up when ctx expires.
func (s *ChannelSink) Consume(ctx context.Context, batch []events.Event) error {
	for _, evt := range batch {
		select {
		case s.ch <- evt:
		case <-ctx.Done():
			return fmt.Errorf("deliver %s: %w", evt.Type, ctx.Err())
		}
	}
	return nil
}

// Close closes the channel.
func (s *ChannelSink) Close(context.Context) error {
	s.once.Do(func() { close(s.ch) })
	return nil
}
