package browserstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// DefaultBaseURL is the public Screenshots API root.
const DefaultBaseURL = "https://www.browserstack.com/screenshots"

const maxErrorBody = 4 << 10

// Config controls the REST client. The Authenticate* toggles decide which
// endpoints receive basic-auth credentials; image downloads fail when
// credentials are attached, so that toggle defaults to false.
type Config struct {
	BaseURL              string
	Username             string
	AccessKey            string
	AuthenticateStartJob bool
	AuthenticateStatus   bool
	AuthenticateBrowsers bool
	AuthenticateDownload bool
	// RequestsPerSecond caps calls across all endpoints; <= 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	UserAgent         string
}

// Client implements capture.RemoteJobClient.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ capture.RemoteJobClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "batch-screenshots/1.0"
	}
	c := &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit starts a screenshot job.
func (c *Client) Submit(
	ctx context.Context,
	pageURL string,
	cfg capture.JobConfig,
	useTunnel bool,
	browsers []capture.BrowserProfile,
) (capture.Job, error) {
	body, err := json.Marshal(newJobRequest(pageURL, cfg, useTunnel, browsers))
	if err != nil {
		return capture.Job{}, fmt.Errorf("marshal job request: %w", err)
	}
	endpoint := c.base.String()
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body), c.cfg.AuthenticateStartJob)
	if err != nil {
		return capture.Job{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return capture.Job{}, &capture.TransportError{Op: "POST", URL: endpoint, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return capture.Job{}, &capture.SubmissionError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	var payload jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return capture.Job{}, &capture.TransportError{Op: "decode", URL: endpoint, Err: err}
	}
	job := payload.toJob()
	if job.ID == "" {
		return capture.Job{}, &capture.SubmissionError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       "response did not include a job id",
		}
	}
	c.logger.Debug("job submitted", zap.String("job_id", job.ID), zap.String("url", pageURL), zap.Int("browsers", len(browsers)))
	return job, nil
}

// FetchStatus retrieves the latest snapshot of a job.
func (c *Client) FetchStatus(ctx context.Context, jobID string) (capture.Job, error) {
	endpoint := c.base.JoinPath(url.PathEscape(jobID) + ".json").String()
	var payload jobResponse
	if err := c.getJSON(ctx, endpoint, c.cfg.AuthenticateStatus, &payload); err != nil {
		return capture.Job{}, err
	}
	job := payload.toJob()
	if job.ID == "" {
		job.ID = jobID
		for i := range job.Artifacts {
			job.Artifacts[i].JobID = jobID
		}
	}
	return job, nil
}

// Browsers lists the supported browser profiles.
func (c *Client) Browsers(ctx context.Context) ([]capture.BrowserProfile, error) {
	endpoint := c.base.JoinPath("browsers.json").String()
	var payload []browserInfo
	if err := c.getJSON(ctx, endpoint, c.cfg.AuthenticateBrowsers, &payload); err != nil {
		return nil, err
	}
	out := make([]capture.BrowserProfile, 0, len(payload))
	for _, b := range payload {
		out = append(out, b.profile())
	}
	return out, nil
}

// Download fetches an image or thumbnail.
func (c *Client) Download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, sourceURL, nil, c.cfg.AuthenticateDownload)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, &capture.TransportError{Op: "GET", URL: sourceURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below
	if resp.StatusCode != http.StatusOK {
		return nil, &capture.TransportError{Op: "GET", URL: sourceURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &capture.TransportError{Op: "read", URL: sourceURL, Err: err}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, auth bool, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil, auth)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return &capture.TransportError{Op: "GET", URL: endpoint, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below
	if resp.StatusCode != http.StatusOK {
		return &capture.TransportError{Op: "GET", URL: endpoint, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &capture.TransportError{Op: "decode", URL: endpoint, Err: err}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader, auth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &capture.TransportError{Op: method, URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if auth {
		req.SetBasicAuth(c.cfg.Username, c.cfg.AccessKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return c.http.Do(req)
}
