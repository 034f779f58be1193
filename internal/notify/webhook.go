// Package notify delivers alert payloads for signals whose tier clears a
// configured floor. Deliveries are plain JSON webhooks so the receiving
// side can be a chat bridge, a pager, or another service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/observability"
	"github.com/nlowell/chainsignal/internal/scoring"
	"github.com/nlowell/chainsignal/internal/signal"
)

// Config holds webhook delivery configuration.
type Config struct {
	URL        string        `yaml:"url"`
	TokenEnv   string        `yaml:"token_env"`
	MinTier    string        `yaml:"min_tier"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// DefaultConfig returns sensible defaults. Only critical signals alert
// unless the floor is lowered explicitly.
func DefaultConfig() Config {
	return Config{
		MinTier:    scoring.TierCritical,
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}
}

// Stats tracks delivery outcomes.
type Stats struct {
	AlertsSent   int64
	AlertsFailed int64
	BytesSent    int64
	LastSentAt   time.Time
}

// Alert is the webhook payload.
type Alert struct {
	SignalID  string                   `json:"signalId"`
	Entity    string                   `json:"entity"`
	Score     int                      `json:"score"`
	Tier      string                   `json:"tier"`
	Lifecycle string                   `json:"lifecycle"`
	Event     scoring.Event            `json:"event"`
	Reasons   []scoring.BreakdownEntry `json:"reasons"`
	SentAt    time.Time                `json:"sentAt"`
}

// Webhook posts alerts to a configured endpoint with retries.
type Webhook struct {
	config     Config
	telemetry  *observability.Telemetry
	logger     *zap.Logger
	httpClient *http.Client

	mu    sync.RWMutex
	stats Stats
}

// New creates a webhook notifier.
func New(cfg Config, tel *observability.Telemetry, logger *zap.Logger) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.MinTier == "" {
		cfg.MinTier = scoring.TierCritical
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	return &Webhook{
		config:    cfg,
		telemetry: tel,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Notify delivers an alert if the evaluation clears the tier floor. It
// reports whether a delivery was attempted.
func (w *Webhook) Notify(ctx context.Context, sig *signal.Signal, res scoring.Result, ev scoring.Event) (bool, error) {
	if tierRank(res.Tier) < tierRank(w.config.MinTier) {
		return false, nil
	}

	alert := Alert{
		SignalID:  sig.ID,
		Entity:    sig.Entity,
		Score:     res.Score,
		Tier:      res.Tier,
		Lifecycle: res.Lifecycle,
		Event:     ev,
		Reasons:   res.TopReasons,
		SentAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return false, fmt.Errorf("encoding alert: %w", err)
	}

	if err := w.sendWithRetry(ctx, payload); err != nil {
		w.telemetry.RecordAlert("failed")
		w.logger.Warn("Alert delivery failed",
			zap.String("signal_id", sig.ID),
			zap.String("tier", res.Tier),
			zap.Error(err))
		return true, err
	}

	w.telemetry.RecordAlert("sent")
	w.logger.Info("Alert delivered",
		zap.String("signal_id", sig.ID),
		zap.String("entity", sig.Entity),
		zap.Int("score", res.Score),
		zap.String("tier", res.Tier))
	return true, nil
}

// Stats returns current delivery statistics.
func (w *Webhook) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// sendWithRetry posts the payload with quadratic backoff between attempts.
func (w *Webhook) sendWithRetry(ctx context.Context, payload []byte) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * time.Second):
			}
		}

		if err := w.send(ctx, payload); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	w.mu.Lock()
	w.stats.AlertsFailed++
	w.mu.Unlock()

	return fmt.Errorf("delivering alert after %d retries: %w", w.config.RetryCount, lastErr)
}

// send performs the actual HTTP request.
func (w *Webhook) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if w.config.TokenEnv != "" {
		if token := os.Getenv(w.config.TokenEnv); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	w.mu.Lock()
	w.stats.AlertsSent++
	w.stats.BytesSent += int64(len(payload))
	w.stats.LastSentAt = time.Now()
	w.mu.Unlock()

	return nil
}

// tierRank orders tiers so the floor comparison works on names.
func tierRank(tier string) int {
	switch tier {
	case scoring.TierCritical:
		return 2
	case scoring.TierNotable:
		return 1
	default:
		return 0
	}
}
