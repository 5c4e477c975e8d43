package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/events"
)

// Notification is the JSON payload published for terminal job and screenshot events.
type Notification struct {
	BatchID      string    `json:"batch_id"`
	Type         string    `json:"type"`
	JobID        string    `json:"job_id,omitempty"`
	JobState     string    `json:"job_state,omitempty"`
	URL          string    `json:"url,omitempty"`
	ScreenshotID string    `json:"screenshot_id,omitempty"`
	Browser      string    `json:"browser,omitempty"`
	ImagePath    string    `json:"image_path,omitempty"`
	Digest       string    `json:"sha256,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"ts"`
}

// PublishSink forwards terminal events to a topic. JobStateChanged is not published.
type PublishSink struct {
	pub    capture.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublishSink constructs a PublishSink.
func NewPublishSink(pub capture.Publisher, topic string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes one message per relevant event.
func (s *PublishSink) Consume(ctx context.Context, batch []events.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Type {
		case events.JobStarted, events.JobCompleted, events.JobFailed, events.JobFailedToStart, events.ScreenshotCompleted:
		default:
			continue
		}
		id, err := s.pub.Publish(ctx, s.topic, notificationFor(evt))
		if err != nil {
			return fmt.Errorf("publish %s: %w", evt.Type, err)
		}
		s.logger.Debug("published event", zap.String("type", string(evt.Type)), zap.String("message_id", id))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PublishSink) Close(context.Context) error {
	return nil
}

func notificationFor(evt events.Event) Notification {
	n := Notification{
		BatchID:   evt.BatchUUID().String(),
		Type:      string(evt.Type),
		JobID:     evt.Job.ID,
		JobState:  string(evt.Job.State),
		URL:       evt.Unit.URL,
		ImagePath: evt.ImagePath,
		Digest:    evt.Digest,
		Error:     evt.ErrText(),
		Timestamp: evt.TS.UTC(),
	}
	if evt.Artifact.ID != "" {
		n.ScreenshotID = evt.Artifact.ID
		n.Browser = evt.Artifact.Browser.String()
	}
	return n
}
