package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig drops a YAML fixture into a temp dir and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

// =============================================================================
// Load Tests
// =============================================================================

// TestDefaultConfig verifies the defaults are self-consistent.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Store.Backend)
	}
	if cfg.Snapshots.Schedule != "@hourly" {
		t.Errorf("expected @hourly schedule, got %q", cfg.Snapshots.Schedule)
	}
	if cfg.Feed.MaxLimit < cfg.Feed.DefaultLimit {
		t.Error("max limit must cover the default limit")
	}
}

// TestLoad verifies file values layer over the defaults.
func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 15s
store:
  backend: redis
  ttl: 48h
sources:
  http:
    - name: watchtower
      url: https://intel.example.com/v1/signals
      token_env: WATCHTOWER_TOKEN
  seed_file: testdata/seed.yaml
notifier:
  enabled: true
  url: https://hooks.example.com/chainsignal
  min_tier: notable
rate_limit:
  enabled: true
  requests_per_minute: 60
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("expected 15s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Sources.PollInterval != 5*time.Minute {
		t.Errorf("expected default poll interval, got %v", cfg.Sources.PollInterval)
	}

	if cfg.Store.Backend != "redis" || cfg.Store.TTL != 48*time.Hour {
		t.Errorf("unexpected store config: %+v", cfg.Store)
	}
	if len(cfg.Sources.HTTP) != 1 || cfg.Sources.HTTP[0].Name != "watchtower" {
		t.Errorf("unexpected sources: %+v", cfg.Sources.HTTP)
	}
	if !cfg.Notifier.Enabled || cfg.Notifier.MinTier != "notable" {
		t.Errorf("unexpected notifier config: %+v", cfg.Notifier)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.RequestsPerMinute != 60 {
		t.Errorf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
}

// TestLoadErrors verifies unreadable and malformed files are rejected.
func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected a parse error, got %v", err)
	}

	// A file that parses but fails validation must also be rejected.
	path = writeConfig(t, "store:\n  backend: postgres\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "backend") {
		t.Errorf("expected a backend error, got %v", err)
	}
}

// =============================================================================
// Validation Tests
// =============================================================================

// TestValidate verifies each runtime-fatal misconfiguration is caught.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"zero port",
			func(c *Config) { c.Server.Port = 0 },
			"port",
		},
		{
			"port out of range",
			func(c *Config) { c.Server.Port = 70000 },
			"port",
		},
		{
			"unknown backend",
			func(c *Config) { c.Store.Backend = "postgres" },
			"backend",
		},
		{
			"zero default limit",
			func(c *Config) { c.Feed.DefaultLimit = 0 },
			"default_limit",
		},
		{
			"max below default",
			func(c *Config) { c.Feed.DefaultLimit = 50; c.Feed.MaxLimit = 10 },
			"max_limit",
		},
		{
			"zero network window",
			func(c *Config) { c.Feed.NetworkWindow = 0 },
			"network_window",
		},
		{
			"source without name",
			func(c *Config) { c.Sources.HTTP = []HTTPSourceConfig{{URL: "https://x"}} },
			"name",
		},
		{
			"source without url",
			func(c *Config) { c.Sources.HTTP = []HTTPSourceConfig{{Name: "x"}} },
			"url",
		},
		{
			"snapshots without schedule",
			func(c *Config) { c.Snapshots.Enabled = true; c.Snapshots.Schedule = "" },
			"schedule",
		},
		{
			"notifier without url",
			func(c *Config) { c.Notifier.Enabled = true; c.Notifier.URL = "" },
			"url",
		},
		{
			"rate limit on memory backend",
			func(c *Config) { c.RateLimit.Enabled = true; c.Store.Backend = "memory" },
			"redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestSourceNames verifies the configured source inventory.
func TestSourceNames(t *testing.T) {
	cfg := DefaultConfig()
	if names := cfg.SourceNames(); len(names) != 0 {
		t.Errorf("expected no sources, got %v", names)
	}

	cfg.Sources.HTTP = []HTTPSourceConfig{
		{Name: "watchtower", URL: "https://a"},
		{Name: "flowdesk", URL: "https://b"},
	}
	cfg.Sources.SeedFile = "seed.yaml"

	names := cfg.SourceNames()
	want := []string{"watchtower", "flowdesk", "file"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
