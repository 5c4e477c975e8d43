package browserstack

import (
	"strings"
	"time"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// createdAtLayout is the timestamp format used in screenshot payloads.
const createdAtLayout = "2006-01-02 15:04:05 UTC"

type browserInfo struct {
	OS             string `json:"os"`
	OSVersion      string `json:"os_version"`
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version,omitempty"`
	Device         string `json:"device,omitempty"`
}

type jobRequest struct {
	URL         string        `json:"url"`
	CallbackURL string        `json:"callback_url,omitempty"`
	Orientation string        `json:"orientation,omitempty"`
	Quality     string        `json:"quality,omitempty"`
	WaitTime    int           `json:"wait_time,omitempty"`
	MacRes      string        `json:"mac_res,omitempty"`
	WinRes      string        `json:"win_res,omitempty"`
	Tunnel      bool          `json:"tunnel"`
	Browsers    []browserInfo `json:"browsers"`
}

type screenshotInfo struct {
	browserInfo
	ID        string `json:"id"`
	State     string `json:"state"`
	URL       string `json:"url"`
	ImageURL  string `json:"image_url"`
	ThumbURL  string `json:"thumb_url"`
	CreatedAt string `json:"created_at"`
}

type jobResponse struct {
	ID          string           `json:"id"`
	JobID       string           `json:"job_id"`
	State       string           `json:"state"`
	CallbackURL string           `json:"callback_url"`
	MacRes      string           `json:"mac_res"`
	WinRes      string           `json:"win_res"`
	Orientation string           `json:"orientation"`
	Quality     string           `json:"quality"`
	WaitTime    int              `json:"wait_time"`
	Screenshots []screenshotInfo `json:"screenshots"`
}

func newJobRequest(url string, cfg capture.JobConfig, useTunnel bool, browsers []capture.BrowserProfile) jobRequest {
	req := jobRequest{
		URL:         url,
		CallbackURL: cfg.CallbackURL,
		Orientation: strings.ToLower(string(cfg.Orientation)),
		Quality:     strings.ToLower(string(cfg.Quality)),
		WaitTime:    cfg.WaitTime,
		MacRes:      wireResolution(cfg.OSXResolution),
		WinRes:      wireResolution(cfg.WinResolution),
		Tunnel:      useTunnel,
		Browsers:    make([]browserInfo, 0, len(browsers)),
	}
	for _, b := range browsers {
		req.Browsers = append(req.Browsers, toBrowserInfo(b))
	}
	return req
}

func wireResolution(res string) string {
	return strings.ReplaceAll(strings.ToLower(res), "r_", "")
}

func toBrowserInfo(b capture.BrowserProfile) browserInfo {
	return browserInfo{
		OS:             b.OS,
		OSVersion:      b.OSVersion,
		Browser:        b.Browser,
		BrowserVersion: b.BrowserVersion,
		Device:         b.Device,
	}
}

func (b browserInfo) profile() capture.BrowserProfile {
	return capture.BrowserProfile{
		OS:             b.OS,
		OSVersion:      b.OSVersion,
		Browser:        b.Browser,
		BrowserVersion: b.BrowserVersion,
		Device:         b.Device,
	}
}

// toJob maps a payload onto the domain model. job_id wins over id; unknown
// states map to the Unknown constants so the poller can decide what to do.
func (r jobResponse) toJob() capture.Job {
	id := r.JobID
	if id == "" {
		id = r.ID
	}
	state, _ := capture.ParseJobState(r.State)
	job := capture.Job{
		ID:    id,
		State: state,
		Config: capture.JobConfig{
			CallbackURL:   r.CallbackURL,
			OSXResolution: r.MacRes,
			WinResolution: r.WinRes,
			Orientation:   capture.Orientation(strings.ToLower(r.Orientation)),
			Quality:       capture.Quality(strings.ToLower(r.Quality)),
			WaitTime:      r.WaitTime,
		},
		Artifacts: make([]capture.Artifact, 0, len(r.Screenshots)),
	}
	for _, s := range r.Screenshots {
		artState, _ := capture.ParseArtifactState(s.State)
		a := capture.Artifact{
			ID:           s.ID,
			JobID:        id,
			Browser:      s.profile(),
			State:        artState,
			URL:          s.URL,
			ImageURL:     s.ImageURL,
			ThumbnailURL: s.ThumbURL,
		}
		if s.CreatedAt != "" {
			if ts, err := time.Parse(createdAtLayout, s.CreatedAt); err == nil {
				a.CreatedAt = &ts
			}
		}
		job.Artifacts = append(job.Artifacts, a)
	}
	return job
}
