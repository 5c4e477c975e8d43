package batch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/events"
)

type statusFunc func(job capture.Job, call int) (capture.Job, error)

type fakeClient struct {
	mu        sync.Mutex
	nextID    int
	failURL   string
	status    statusFunc
	jobs      map[string]capture.Job
	calls     map[string]int
	submitted [][]capture.BrowserProfile
	downloads map[string]int
	active    int
	maxActive int

	// downloadDelay holds each Download before it is recorded as finished.
	downloadDelay time.Duration
	// timeline records "submit:<url>" and "download:<source>" in completion order.
	timeline []string
}

func newFakeClient(status statusFunc) *fakeClient {
	return &fakeClient{
		status:    status,
		jobs:      make(map[string]capture.Job),
		calls:     make(map[string]int),
		downloads: make(map[string]int),
	}
}

func (f *fakeClient) Submit(_ context.Context, url string, cfg capture.JobConfig, _ bool, browsers []capture.BrowserProfile) (capture.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if url == f.failURL {
		return capture.Job{}, &capture.SubmissionError{StatusCode: 422, Status: "422 Unprocessable Entity", Body: "invalid url"}
	}
	f.nextID++
	id := fmt.Sprintf("JOB-%d", f.nextID)
	job := capture.Job{ID: id, Config: cfg, State: capture.JobStateQueued}
	for i, b := range browsers {
		job.Artifacts = append(job.Artifacts, capture.Artifact{
			ID:      fmt.Sprintf("%s-shot-%d", strings.ToLower(id), i),
			JobID:   id,
			Browser: b,
			State:   capture.ArtifactStatePending,
			URL:     url,
		})
	}
	f.jobs[id] = job
	f.submitted = append(f.submitted, browsers)
	f.timeline = append(f.timeline, "submit:"+url)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	return job.Clone(), nil
}

func (f *fakeClient) FetchStatus(_ context.Context, id string) (capture.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	job, err := f.status(f.jobs[id].Clone(), f.calls[id])
	if err == nil && job.IsComplete() {
		f.active--
	}
	return job, err
}

func (f *fakeClient) Download(_ context.Context, source string) ([]byte, error) {
	time.Sleep(f.downloadDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads[source]++
	f.timeline = append(f.timeline, "download:"+source)
	return []byte("data:" + source), nil
}

func (f *fakeClient) Browsers(context.Context) ([]capture.BrowserProfile, error) {
	return nil, nil
}

func (f *fakeClient) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeClient) downloadCount(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[source]
}

func (f *fakeClient) totalDownloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.downloads {
		total += n
	}
	return total
}

func (f *fakeClient) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.timeline...)
}

func (f *fakeClient) peakActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func imageURL(a capture.Artifact) string {
	return "https://cdn.example.com/shots/" + a.ID + ".png?sig=abc"
}

func thumbURL(a capture.Artifact) string {
	return "https://cdn.example.com/thumbs/" + a.ID + ".jpg"
}

// withArtifacts moves every artifact to state, filling download URLs for done.
func withArtifacts(job capture.Job, state capture.ArtifactState) capture.Job {
	for i := range job.Artifacts {
		job.Artifacts[i].State = state
		if state == capture.ArtifactStateDone {
			job.Artifacts[i].ImageURL = imageURL(job.Artifacts[i])
			job.Artifacts[i].ThumbnailURL = thumbURL(job.Artifacts[i])
		}
	}
	return job
}

// completeAfter reports processing until the nth status call, then done.
func completeAfter(n int) statusFunc {
	return func(job capture.Job, call int) (capture.Job, error) {
		if call < n {
			job.State = capture.JobStateProcessing
			return withArtifacts(job, capture.ArtifactStateProcessing), nil
		}
		job.State = capture.JobStateDone
		return withArtifacts(job, capture.ArtifactStateDone), nil
	}
}

type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) Emit(evt events.Event) {
	r.mu.Lock()
	r.evts = append(r.evts, evt)
	r.mu.Unlock()
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.evts...)
}

func (r *recorder) ofType(typ events.Type) []events.Event {
	var out []events.Event
	for _, evt := range r.all() {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

func fastConfig(limit int) Config {
	return Config{
		SessionLimit:     limit,
		PollInterval:     time.Millisecond,
		AdmissionBackoff: time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, client *fakeClient, cfg Config) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	o, err := New(client, cfg, WithEmitter(rec))
	require.NoError(t, err)
	return o, rec
}

var (
	windowsChrome = capture.BrowserProfile{OS: "Windows", OSVersion: "10", Browser: "chrome", BrowserVersion: "120.0"}
	iPhone        = capture.BrowserProfile{OS: "ios", OSVersion: "17", Browser: "Mobile Safari", Device: "iPhone 15"}
)

func testUnit(url, name string, browsers ...capture.BrowserProfile) capture.CaptureUnit {
	if len(browsers) == 0 {
		browsers = []capture.BrowserProfile{windowsChrome}
	}
	return capture.CaptureUnit{
		URL:      url,
		Filename: name,
		Config: capture.JobConfig{
			WinResolution: "R_1024x768",
			Orientation:   capture.OrientationPortrait,
		},
		Browsers: browsers,
	}
}
