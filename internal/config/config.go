// Package config provides configuration management for ChainSignal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all ChainSignal configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Sources   SourcesConfig   `yaml:"sources"`
	Feed      FeedConfig      `yaml:"feed"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects and tunes the signal store backend.
type StoreConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`

	// TTL expires stored signals in the redis backend. Zero keeps them
	// until deleted.
	TTL time.Duration `yaml:"ttl"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	PoolSize    int    `yaml:"pool_size"`
}

// SourcesConfig holds signal feed settings.
type SourcesConfig struct {
	PollInterval time.Duration      `yaml:"poll_interval"`
	HTTP         []HTTPSourceConfig `yaml:"http"`
	SeedFile     string             `yaml:"seed_file"`
}

// HTTPSourceConfig describes one polled JSON endpoint.
type HTTPSourceConfig struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	TokenEnv string        `yaml:"token_env"`
	Timeout  time.Duration `yaml:"timeout"`
}

// FeedConfig tunes the read model.
type FeedConfig struct {
	DefaultLimit  int           `yaml:"default_limit"`
	MaxLimit      int           `yaml:"max_limit"`
	NetworkWindow time.Duration `yaml:"network_window"`
}

// SnapshotsConfig holds temporal snapshot settings.
type SnapshotsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Schedule   string `yaml:"schedule"`
	MaxHistory int    `yaml:"max_history"`
}

// NotifierConfig holds webhook alerting settings.
type NotifierConfig struct {
	Enabled    bool          `yaml:"enabled"`
	URL        string        `yaml:"url"`
	TokenEnv   string        `yaml:"token_env"`
	MinTier    string        `yaml:"min_tier"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// RateLimitConfig holds API rate limiting settings. The limiter counts in
// Redis, so it can only be enabled with the redis store backend.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	IncludeHeaders    bool `yaml:"include_headers"`
}

// TelemetryConfig holds logging, metrics, and tracing settings.
type TelemetryConfig struct {
	Environment    string  `yaml:"environment"`
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"` // json, console
	TracingEnabled bool    `yaml:"tracing_enabled"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	MetricsEnabled bool    `yaml:"metrics_enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
		},
		Sources: SourcesConfig{
			PollInterval: 5 * time.Minute,
		},
		Feed: FeedConfig{
			DefaultLimit:  25,
			MaxLimit:      200,
			NetworkWindow: 24 * time.Hour,
		},
		Snapshots: SnapshotsConfig{
			Enabled:    true,
			Schedule:   "@hourly",
			MaxHistory: 24,
		},
		Notifier: NotifierConfig{
			Enabled:    false,
			TokenEnv:   "CHAINSIGNAL_WEBHOOK_TOKEN",
			MinTier:    "critical",
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 120,
			IncludeHeaders:    true,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			LogLevel:       "info",
			LogFormat:      "json",
			TracingEnabled: false,
			SamplingRate:   1.0,
			MetricsEnabled: true,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Feed.DefaultLimit <= 0 {
		return fmt.Errorf("feed default_limit must be positive, got %d", c.Feed.DefaultLimit)
	}
	if c.Feed.MaxLimit < c.Feed.DefaultLimit {
		return fmt.Errorf("feed max_limit %d is below default_limit %d", c.Feed.MaxLimit, c.Feed.DefaultLimit)
	}
	if c.Feed.NetworkWindow <= 0 {
		return fmt.Errorf("feed network_window must be positive")
	}

	for i, src := range c.Sources.HTTP {
		if src.Name == "" {
			return fmt.Errorf("sources.http[%d]: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("sources.http[%d] (%s): url is required", i, src.Name)
		}
	}

	if c.Snapshots.Enabled && c.Snapshots.Schedule == "" {
		return fmt.Errorf("snapshots enabled without a schedule")
	}

	if c.Notifier.Enabled && c.Notifier.URL == "" {
		return fmt.Errorf("notifier enabled without a url")
	}

	if c.RateLimit.Enabled && c.Store.Backend != "redis" {
		return fmt.Errorf("rate limiting requires the redis backend")
	}

	return nil
}

// SourceNames returns the identifiers of every configured source.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources.HTTP)+1)
	for _, src := range c.Sources.HTTP {
		names = append(names, src.Name)
	}
	if c.Sources.SeedFile != "" {
		names = append(names, "file")
	}
	return names
}
