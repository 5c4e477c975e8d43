package capture

import (
	"fmt"
	"strings"
	"time"
)

// BrowserProfile identifies one rendering target. Device is empty for desktop browsers.
type BrowserProfile struct {
	OS             string `json:"os" mapstructure:"os"`
	OSVersion      string `json:"os_version" mapstructure:"os_version"`
	Browser        string `json:"browser" mapstructure:"browser"`
	BrowserVersion string `json:"browser_version" mapstructure:"browser_version"`
	Device         string `json:"device,omitempty" mapstructure:"device"`
}

// IsDevice reports whether the profile targets a mobile device.
func (b BrowserProfile) IsDevice() bool {
	return b.Device != ""
}

func (b BrowserProfile) String() string {
	if b.IsDevice() {
		return fmt.Sprintf("%s v%s on %s running %s", b.OS, b.OSVersion, b.Device, b.Browser)
	}
	return fmt.Sprintf("%s v%s on %s %s", b.Browser, b.BrowserVersion, b.OS, b.OSVersion)
}

// Orientation applies to device screenshots.
type Orientation string

// Supported orientations.
const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Quality selects the image compression used by the remote service.
type Quality string

// Supported qualities.
const (
	QualityOriginal   Quality = "original"
	QualityCompressed Quality = "compressed"
)

// JobConfig captures the per-job rendering options echoed back by the service.
type JobConfig struct {
	CallbackURL   string      `json:"callback_url,omitempty" mapstructure:"callback_url"`
	OSXResolution string      `json:"mac_res,omitempty" mapstructure:"mac_res"`
	WinResolution string      `json:"win_res,omitempty" mapstructure:"win_res"`
	Orientation   Orientation `json:"orientation,omitempty" mapstructure:"orientation"`
	Quality       Quality     `json:"quality,omitempty" mapstructure:"quality"`
	WaitTime      int         `json:"wait_time,omitempty" mapstructure:"wait_time"`
}

// CaptureUnit is one API-call-sized request to render a URL in a set of browsers.
type CaptureUnit struct {
	URL      string           `json:"url" mapstructure:"url"`
	Filename string           `json:"filename" mapstructure:"filename"`
	Config   JobConfig        `json:"config" mapstructure:"config"`
	Browsers []BrowserProfile `json:"browsers" mapstructure:"browsers"`
}

const reservedFilenameChars = `<>:"/\|?*`

// Validate checks the unit is submittable. Filename may be empty, in which
// case screenshots are named after their own identifiers.
func (u CaptureUnit) Validate() error {
	if strings.TrimSpace(u.URL) == "" {
		return &ConfigurationError{Field: "url", Reason: "is required"}
	}
	if strings.ContainsAny(u.Filename, reservedFilenameChars) {
		return &ConfigurationError{Field: "filename", Reason: fmt.Sprintf("%q contains illegal characters", u.Filename)}
	}
	for _, r := range u.Filename {
		if r < 0x20 {
			return &ConfigurationError{Field: "filename", Reason: fmt.Sprintf("%q contains control characters", u.Filename)}
		}
	}
	if len(u.Browsers) == 0 {
		return &ConfigurationError{Field: "browsers", Reason: "at least one browser is required"}
	}
	return nil
}

// Job is the remote service's handle for one submitted CaptureUnit.
type Job struct {
	ID        string     `json:"id"`
	Config    JobConfig  `json:"config"`
	State     JobState   `json:"state"`
	Artifacts []Artifact `json:"screenshots"`
}

// IsComplete reports whether the job reached a terminal state.
func (j Job) IsComplete() bool {
	return j.State.IsTerminal()
}

// Key returns the case-insensitive identifier used for lookups.
func (j Job) Key() string {
	return JobKey(j.ID)
}

// Clone returns a copy that does not share the artifact slice.
func (j Job) Clone() Job {
	out := j
	out.Artifacts = append([]Artifact(nil), j.Artifacts...)
	return out
}

// JobKey normalizes a job identifier.
func JobKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Artifact is one rendered screenshot (plus thumbnail) within a Job.
type Artifact struct {
	ID           string         `json:"id"`
	JobID        string         `json:"job_id"`
	Browser      BrowserProfile `json:"browser"`
	State        ArtifactState  `json:"state"`
	URL          string         `json:"url"`
	ImageURL     string         `json:"image_url"`
	ThumbnailURL string         `json:"thumb_url"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// ReadyToHandle reports whether the artifact reached a state the engine acts on.
func (a Artifact) ReadyToHandle() bool {
	return a.State.IsTerminal()
}
