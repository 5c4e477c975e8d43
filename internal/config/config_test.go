package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Batch.SessionLimit)
	assert.False(t, cfg.Batch.CaptureThumbnails)
	assert.Equal(t, 4*time.Second, cfg.Batch.PollInterval)
	assert.Equal(t, 10, cfg.Batch.MaxPollErrors)
	assert.Equal(t, time.Second, cfg.Batch.AdmissionBackoff)
	assert.Equal(t, 25, cfg.Batch.MaxBrowsersPerJob)
	assert.True(t, cfg.BrowserStack.AuthenticateStartJob)
	assert.False(t, cfg.BrowserStack.AuthenticateDownload)
	assert.Equal(t, 30*time.Second, cfg.BrowserStack.Timeout())
	assert.Empty(t, cfg.Jobs)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
browserstack:
  username: alice
  access_key: secret
batch:
  session_limit: 2
  capture_thumbnails: true
  poll_interval: 2s
jobs:
  - url: https://example.com
    filename: home
    config:
      win_res: 1024x768
      quality: compressed
      wait_time: 5
    browsers:
      - os: Windows
        os_version: "10"
        browser: chrome
        browser_version: "120.0"
      - os: ios
        os_version: "17"
        browser: Mobile Safari
        device: iPhone 15
db:
  driver: sqlite
  dsn: /tmp/history.db
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.BrowserStack.Credentialed())
	assert.Equal(t, 2, cfg.Batch.SessionLimit)
	assert.True(t, cfg.Batch.CaptureThumbnails)
	assert.Equal(t, 2*time.Second, cfg.Batch.PollInterval)
	require.Len(t, cfg.Jobs, 1)
	unit := cfg.Jobs[0]
	assert.Equal(t, "home", unit.Filename)
	assert.Equal(t, "1024x768", unit.Config.WinResolution)
	assert.Equal(t, capture.QualityCompressed, unit.Config.Quality)
	assert.Equal(t, 5, unit.Config.WaitTime)
	require.Len(t, unit.Browsers, 2)
	assert.Equal(t, "iPhone 15", unit.Browsers[1].Device)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCREENSHOTS_BROWSERSTACK_USERNAME", "env-user")
	t.Setenv("SCREENSHOTS_BATCH_SESSION_LIMIT", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.BrowserStack.Username)
	assert.Equal(t, 7, cfg.Batch.SessionLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			BrowserStack: BrowserStackConfig{TimeoutSeconds: 30},
			Batch: BatchConfig{
				SessionLimit:      1,
				PollInterval:      time.Second,
				MaxPollErrors:     10,
				AdmissionBackoff:  time.Second,
				MaxBrowsersPerJob: 25,
			},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"zero session limit":  func(c *Config) { c.Batch.SessionLimit = 0 },
		"zero poll interval":  func(c *Config) { c.Batch.PollInterval = 0 },
		"zero poll errors":    func(c *Config) { c.Batch.MaxPollErrors = 0 },
		"browser cap too big": func(c *Config) { c.Batch.MaxBrowsersPerJob = 26 },
		"zero timeout":        func(c *Config) { c.BrowserStack.TimeoutSeconds = 0 },
		"server without port": func(c *Config) { c.Server = ServerConfig{Enabled: true} },
		"unknown driver":      func(c *Config) { c.DB.Driver = "mysql" },
		"driver without dsn":  func(c *Config) { c.DB.Driver = DriverPostgres },
		"topic w/o project":   func(c *Config) { c.PubSub.TopicName = "shots" },
		"invalid job":         func(c *Config) { c.Jobs = []capture.CaptureUnit{{URL: "https://x"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
