package capture

import (
	"errors"
	"fmt"
)

// ErrStatusUnavailable marks a job whose status could not be fetched after
// exhausting the consecutive-error budget.
var ErrStatusUnavailable = errors.New("job status unavailable")

// ConfigurationError reports invalid batch input. RunBatch returns it
// synchronously before any work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// SubmissionError is returned when the remote service rejects a job.
type SubmissionError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *SubmissionError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("submit job: %s", e.Status)
	}
	return fmt.Sprintf("submit job: %s: %s", e.Status, e.Body)
}

// TransportError wraps network and protocol failures from status polling and downloads.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError wraps local (or mirror) write failures.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
