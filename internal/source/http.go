package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nlowell/chainsignal/internal/signal"
)

const httpUserAgent = "chainsignal/1.0"

// HTTPConfig configures a polled JSON endpoint.
type HTTPConfig struct {
	Name     string        `yaml:"name"`
	URL      string        `yaml:"url"`
	TokenEnv string        `yaml:"token_env"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPSource polls an endpoint that responds with {"signals": [...]}.
// This is the shape the upstream intelligence exporters emit.
type HTTPSource struct {
	config     HTTPConfig
	httpClient *http.Client
}

// signalEnvelope is the wire shape shared by all HTTP exporters.
type signalEnvelope struct {
	Signals []*signal.Signal `json:"signals"`
}

// NewHTTPSource creates an HTTP source. The bearer token, if any, is read
// from the environment on every request so rotations apply without a
// restart.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("http source name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("http source %s: url is required", cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPSource{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Name returns the configured source identifier.
func (s *HTTPSource) Name() string {
	return s.config.Name
}

// Fetch retrieves the current signal set from the endpoint.
func (s *HTTPSource) Fetch(ctx context.Context) ([]*signal.Signal, error) {
	req, err := s.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching from %s: %w", s.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("source %s returned %d: %s",
			s.config.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope signalEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", s.config.Name, err)
	}
	return envelope.Signals, nil
}

// HealthCheck issues the same request and discards the payload.
func (s *HTTPSource) HealthCheck(ctx context.Context) error {
	req, err := s.newRequest(ctx)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("source %s unreachable: %w", s.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("source %s rejected the configured token", s.config.Name)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source %s returned status %d", s.config.Name, resp.StatusCode)
	}
	return nil
}

// newRequest creates an authenticated request against the endpoint.
func (s *HTTPSource) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpUserAgent)

	if s.config.TokenEnv != "" {
		if token := os.Getenv(s.config.TokenEnv); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}
