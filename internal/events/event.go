package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// Type names a lifecycle transition.
type Type string

// Supported lifecycle notifications.
const (
	JobStarted          Type = "JOB_STARTED"
	JobStateChanged     Type = "JOB_STATE_CHANGED"
	JobCompleted        Type = "JOB_COMPLETED"
	JobFailedToStart    Type = "JOB_FAILED_TO_START"
	JobFailed           Type = "JOB_FAILED"
	ScreenshotCompleted Type = "SCREENSHOT_COMPLETED"
	ScreenshotFailed    Type = "SCREENSHOT_FAILED"
)

// Event captures a single lifecycle transition within a batch.
type Event struct {
	// BatchID identifies the RunBatch invocation using the 16-byte UUID form.
	BatchID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS   time.Time
	Type Type
	// Job is the latest snapshot; zero for JobFailedToStart.
	Job capture.Job
	// Artifact is set for screenshot events.
	Artifact capture.Artifact
	// Unit is the capture unit the job was submitted for.
	Unit capture.CaptureUnit
	Err  error
	// ImagePath and ThumbnailPath are set on ScreenshotCompleted when files were written.
	ImagePath     string
	ThumbnailPath string
	// ImageName is the file name stem used for the artifact.
	ImageName string
	Digest    string
	Bytes     int64
	// Dur is the job's wall time on JobCompleted and JobFailed.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.BatchID == [16]byte{} {
		return errors.New("batch id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Type {
	case JobStarted, JobStateChanged, JobCompleted:
		if e.Job.ID == "" {
			return fmt.Errorf("%s requires a job", e.Type)
		}
	case JobFailedToStart:
		if e.Err == nil {
			return errors.New("job failed to start requires an error")
		}
	case JobFailed:
		if e.Err == nil {
			return errors.New("job failed requires an error")
		}
	case ScreenshotCompleted:
		if e.Artifact.ID == "" {
			return errors.New("screenshot completed requires an artifact")
		}
	case ScreenshotFailed:
		if e.Artifact.ID == "" || e.Err == nil {
			return errors.New("screenshot failed requires an artifact and an error")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// BatchUUID converts the binary batch ID to uuid.UUID for repositories.
func (e Event) BatchUUID() uuid.UUID {
	return uuid.UUID(e.BatchID)
}

// ErrText returns the error message or an empty string.
func (e Event) ErrText() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
