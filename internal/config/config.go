// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/batch-screenshots/internal/capture"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	BrowserStack BrowserStackConfig    `mapstructure:"browserstack"`
	Batch        BatchConfig           `mapstructure:"batch"`
	Jobs         []capture.CaptureUnit `mapstructure:"jobs"`
	Logging      LoggingConfig         `mapstructure:"logging"`
	Server       ServerConfig          `mapstructure:"server"`
	Storage      StorageConfig         `mapstructure:"storage"`
	DB           DBConfig              `mapstructure:"db"`
	PubSub       PubSubConfig          `mapstructure:"pubsub"`
	Events       EventsConfig          `mapstructure:"events"`
}

// BrowserStackConfig configures the remote API client.
type BrowserStackConfig struct {
	BaseURL              string  `mapstructure:"base_url"`
	Username             string  `mapstructure:"username"`
	AccessKey            string  `mapstructure:"access_key"`
	AuthenticateStartJob bool    `mapstructure:"authenticate_start_job"`
	AuthenticateStatus   bool    `mapstructure:"authenticate_job_status"`
	AuthenticateBrowsers bool    `mapstructure:"authenticate_browsers"`
	AuthenticateDownload bool    `mapstructure:"authenticate_download"`
	RequestsPerSecond    float64 `mapstructure:"requests_per_second"`
	Burst                int     `mapstructure:"burst"`
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
}

// BatchConfig governs admission, polling, and persistence.
type BatchConfig struct {
	SessionLimit      int           `mapstructure:"session_limit"`
	CaptureThumbnails bool          `mapstructure:"capture_thumbnails"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxPollErrors     int           `mapstructure:"max_poll_errors"`
	AdmissionBackoff  time.Duration `mapstructure:"admission_backoff"`
	MaxBrowsersPerJob int           `mapstructure:"max_browsers_per_job"`
	UseTunnel         bool          `mapstructure:"use_tunnel"`
	OutputDir         string        `mapstructure:"output_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ServerConfig controls the optional status API.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// APIKey, when set, is required in X-API-Key on every request.
	APIKey string `mapstructure:"api_key"`
}

// StorageConfig enables the GCS mirror when GCSBucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig selects the batch history backend. An empty Driver disables it.
type DBConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// EventsConfig tunes the event hub.
type EventsConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
}

// Supported DB drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCREENSHOTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browserstack.base_url", "https://www.browserstack.com/screenshots")
	v.SetDefault("browserstack.username", "")
	v.SetDefault("browserstack.access_key", "")
	v.SetDefault("browserstack.authenticate_start_job", true)
	v.SetDefault("browserstack.authenticate_job_status", false)
	v.SetDefault("browserstack.authenticate_browsers", false)
	v.SetDefault("browserstack.authenticate_download", false)
	v.SetDefault("browserstack.requests_per_second", 2.0)
	v.SetDefault("browserstack.burst", 4)
	v.SetDefault("browserstack.timeout_seconds", 30)
	v.SetDefault("batch.session_limit", 4)
	v.SetDefault("batch.capture_thumbnails", false)
	v.SetDefault("batch.poll_interval", 4*time.Second)
	v.SetDefault("batch.max_poll_errors", 10)
	v.SetDefault("batch.admission_backoff", time.Second)
	v.SetDefault("batch.max_browsers_per_job", capture.DefaultBrowserLimit)
	v.SetDefault("batch.use_tunnel", false)
	v.SetDefault("batch.output_dir", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("db.driver", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table_prefix", "batch")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_batch_events", 100)
	v.SetDefault("events.max_batch_wait", 250*time.Millisecond)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Batch.SessionLimit < 1 {
		return fmt.Errorf("batch.session_limit must be >= 1")
	}
	if c.Batch.PollInterval <= 0 {
		return fmt.Errorf("batch.poll_interval must be > 0")
	}
	if c.Batch.MaxPollErrors < 1 {
		return fmt.Errorf("batch.max_poll_errors must be >= 1")
	}
	if c.Batch.AdmissionBackoff <= 0 {
		return fmt.Errorf("batch.admission_backoff must be > 0")
	}
	if c.Batch.MaxBrowsersPerJob < 1 || c.Batch.MaxBrowsersPerJob > capture.DefaultBrowserLimit {
		return fmt.Errorf("batch.max_browsers_per_job must be between 1 and %d", capture.DefaultBrowserLimit)
	}
	if c.BrowserStack.TimeoutSeconds <= 0 {
		return fmt.Errorf("browserstack.timeout_seconds must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.DB.Driver {
	case "":
	case DriverPostgres, DriverSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required when db.driver is set")
		}
	default:
		return fmt.Errorf("db.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DB.Driver)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	for i, unit := range c.Jobs {
		if err := unit.Validate(); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
	}
	return nil
}

// Credentialed reports whether BrowserStack credentials were supplied.
func (c BrowserStackConfig) Credentialed() bool {
	return c.Username != "" && c.AccessKey != ""
}

// Timeout returns the per-request HTTP timeout.
func (c BrowserStackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
