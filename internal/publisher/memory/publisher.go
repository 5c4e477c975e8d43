// Package memory keeps recent notifications in process. It stands in for
// Pub/Sub when no topic is configured so the status API can still show what
// would have been published.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultCapacity bounds the log when New is given a non-positive capacity.
const DefaultCapacity = 1000

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID          string    `json:"id"`
	Topic       string    `json:"topic"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher is a bounded, in-order notification log. Once full, the oldest
// message is dropped for every new one.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	seq      int
	messages []PublishedMessage
}

// New returns a Publisher retaining at most capacity messages.
func New(capacity int) *Publisher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Publisher{capacity: capacity}
}

// Publish records the message and returns a sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	msg := PublishedMessage{
		ID:          fmt.Sprintf("memory-%d", p.seq),
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}
	if len(p.messages) == p.capacity {
		copy(p.messages, p.messages[1:])
		p.messages = p.messages[:len(p.messages)-1]
	}
	p.messages = append(p.messages, msg)
	return msg.ID, nil
}

// Messages returns the retained messages, oldest first.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]PublishedMessage(nil), p.messages...)
}

// ByTopic returns the retained messages for one topic, oldest first.
func (p *Publisher) ByTopic(topic string) []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset discards retained messages. IDs keep increasing.
func (p *Publisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = nil
}
