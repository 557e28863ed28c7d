// Package config defines the WatcherConfig loaded from YAML or built
// programmatically via functional options.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mgmacleod/claude-sessions/internal/apperror"
)

// RetentionPolicy selects a Live Session retention strategy.
type RetentionPolicy string

const (
	RetentionFull    RetentionPolicy = "full"
	RetentionSliding RetentionPolicy = "sliding"
	RetentionNone    RetentionPolicy = "none"
)

// WebhookEndpoint configures one outbound webhook delivery target.
type WebhookEndpoint struct {
	URL          string            `yaml:"url"`
	Headers      map[string]string `yaml:"headers"`
	BatchSize    int               `yaml:"batch_size"`
	BatchTimeout time.Duration     `yaml:"batch_timeout"`
	MaxRetries   int               `yaml:"max_retries"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
	// RateLimitPerSecond caps outbound POSTs per second for this endpoint;
	// 0 means unlimited.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
}

// MetricsConfig configures the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// WatcherConfig is the top-level configuration for a Session Watcher.
type WatcherConfig struct {
	BasePath           string            `yaml:"base_path"`
	PollInterval       time.Duration     `yaml:"poll_interval"`
	IdleTimeout        time.Duration     `yaml:"idle_timeout"`
	EndTimeout         time.Duration     `yaml:"end_timeout"`
	ProcessExisting    bool              `yaml:"process_existing"`
	EmitSessionEvents  bool              `yaml:"emit_session_events"`
	TruncateInputs     bool              `yaml:"truncate_inputs"`
	MaxInputLength     int               `yaml:"max_input_length"`
	StateFile          string            `yaml:"state_file"`
	SaveInterval       time.Duration     `yaml:"save_interval"`
	RetentionPolicy    RetentionPolicy   `yaml:"retention_policy"`
	MaxMessages        int               `yaml:"max_messages"`
	AsyncQueueCapacity int               `yaml:"async_queue_capacity"`
	Webhooks           []WebhookEndpoint `yaml:"webhooks"`
	Metrics            MetricsConfig     `yaml:"metrics"`
	Logging            LoggingConfig     `yaml:"logging"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() WatcherConfig {
	home, _ := os.UserHomeDir()
	return WatcherConfig{
		BasePath:           home + "/.claude",
		PollInterval:       500 * time.Millisecond,
		IdleTimeout:        2 * time.Minute,
		EndTimeout:         5 * time.Minute,
		ProcessExisting:    true,
		EmitSessionEvents:  true,
		TruncateInputs:     true,
		MaxInputLength:     1024,
		StateFile:          "",
		SaveInterval:       30 * time.Second,
		RetentionPolicy:    RetentionFull,
		MaxMessages:        0,
		AsyncQueueCapacity: 1024,
		Metrics:            MetricsConfig{Enabled: true, Addr: "0.0.0.0:9090"},
		Logging:            LoggingConfig{Level: "info", Format: "text"},
	}
}

// Option mutates a WatcherConfig during programmatic construction.
type Option func(*WatcherConfig)

// WithBasePath overrides the base transcript directory.
func WithBasePath(path string) Option {
	return func(c *WatcherConfig) { c.BasePath = path }
}

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *WatcherConfig) { c.PollInterval = d }
}

// WithStateFile overrides the state persistence file path.
func WithStateFile(path string) Option {
	return func(c *WatcherConfig) { c.StateFile = path }
}

// WithWebhook appends a webhook endpoint.
func WithWebhook(ep WebhookEndpoint) Option {
	return func(c *WatcherConfig) { c.Webhooks = append(c.Webhooks, ep) }
}

// New builds a WatcherConfig from defaults plus options.
func New(opts ...Option) WatcherConfig {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	c.applyDefaults()
	return c
}

// Load reads a YAML configuration file, expanding environment variables,
// and merges it over defaults.
func Load(path string) (WatcherConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WatcherConfig{}, apperror.Config("read config", err).WithContext("path", path)
	}
	expanded := os.ExpandEnv(string(data))

	c := Default()
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return WatcherConfig{}, apperror.Config("parse config", err).WithContext("path", path)
	}
	c.applyDefaults()
	return c, nil
}

// ApplyWebhookDefaults fills in per-endpoint webhook defaults
// for any endpoint added after construction, e.g. via a CLI --webhook flag.
func (c *WatcherConfig) ApplyWebhookDefaults() {
	c.applyDefaults()
}

// applyDefaults fills in per-endpoint webhook defaults that are
// only meaningful once a URL is known.
func (c *WatcherConfig) applyDefaults() {
	for i := range c.Webhooks {
		ep := &c.Webhooks[i]
		if ep.BatchSize <= 0 {
			ep.BatchSize = 10
		}
		if ep.BatchTimeout <= 0 {
			ep.BatchTimeout = 5 * time.Second
		}
		if ep.MaxRetries <= 0 {
			ep.MaxRetries = 3
		}
		if ep.RetryBackoff <= 0 {
			ep.RetryBackoff = time.Second
		}
	}
}

// Validate reports a configuration error fit to surface as a CLI setup
// failure.
func (c WatcherConfig) Validate() error {
	if c.BasePath == "" {
		return apperror.Config("base_path is required", nil)
	}
	if c.RetentionPolicy == RetentionSliding && c.MaxMessages <= 0 {
		return apperror.Config("max_messages must be > 0 for sliding retention", nil)
	}
	return nil
}
