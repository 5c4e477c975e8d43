package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/batch-screenshots/internal/events"
)

// LogSink emits one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Failures log at warn level.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("batch_id", evt.BatchUUID().String()),
			zap.String("type", string(evt.Type)),
		}
		if evt.Job.ID != "" {
			fields = append(fields, zap.String("job_id", evt.Job.ID), zap.String("job_state", string(evt.Job.State)))
		}
		if evt.Unit.URL != "" {
			fields = append(fields, zap.String("url", evt.Unit.URL))
		}
		if evt.Artifact.ID != "" {
			fields = append(fields,
				zap.String("screenshot_id", evt.Artifact.ID),
				zap.Stringer("browser", evt.Artifact.Browser),
			)
		}
		if evt.ImagePath != "" {
			fields = append(fields, zap.String("image_path", evt.ImagePath))
		}
		if evt.Digest != "" {
			fields = append(fields, zap.String("sha256", evt.Digest))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		level := zapcore.InfoLevel
		if evt.Err != nil {
			fields = append(fields, zap.Error(evt.Err))
			level = zapcore.WarnLevel
		}
		s.logger.Log(level, "batch event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
