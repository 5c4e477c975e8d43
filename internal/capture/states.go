package capture

import "strings"

// JobState is the lifecycle state of a remote job.
type JobState string

// Job states reported by the remote service.
const (
	JobStatePending    JobState = "pending"
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateDone       JobState = "done"
	JobStateTimedOut   JobState = "timed-out"
	JobStateUnknown    JobState = "unknown"
)

// IsTerminal is true for done and timed-out.
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateTimedOut
}

// ArtifactState is the lifecycle state of a single screenshot.
type ArtifactState string

// Artifact states reported by the remote service.
const (
	ArtifactStatePending    ArtifactState = "pending"
	ArtifactStateProcessing ArtifactState = "processing"
	ArtifactStateDone       ArtifactState = "done"
	ArtifactStateTimedOut   ArtifactState = "timed-out"
	ArtifactStateUnknown    ArtifactState = "unknown"
)

// IsTerminal is true for done and timed-out.
func (s ArtifactState) IsTerminal() bool {
	return s == ArtifactStateDone || s == ArtifactStateTimedOut
}

// ParseJobState maps the service vocabulary onto JobState. An empty string is
// pending; anything unrecognized yields JobStateUnknown and false.
func ParseJobState(raw string) (JobState, bool) {
	switch normalizeState(raw) {
	case "":
		return JobStatePending, true
	case "pending":
		return JobStatePending, true
	case "queue", "queued", "queuedall":
		return JobStateQueued, true
	case "processing", "running":
		return JobStateProcessing, true
	case "done":
		return JobStateDone, true
	case "timedout":
		return JobStateTimedOut, true
	default:
		return JobStateUnknown, false
	}
}

// ParseArtifactState maps the service vocabulary onto ArtifactState.
func ParseArtifactState(raw string) (ArtifactState, bool) {
	switch normalizeState(raw) {
	case "", "pending":
		return ArtifactStatePending, true
	case "processing", "queue", "queued":
		return ArtifactStateProcessing, true
	case "done":
		return ArtifactStateDone, true
	case "timedout":
		return ArtifactStateTimedOut, true
	default:
		return ArtifactStateUnknown, false
	}
}

func normalizeState(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}
