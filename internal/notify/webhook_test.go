package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/scoring"
	"github.com/nlowell/chainsignal/internal/signal"
)

func criticalResult() scoring.Result {
	return scoring.Result{
		Score:     85,
		Tier:      scoring.TierCritical,
		Lifecycle: scoring.StageActive,
	}
}

// =============================================================================
// Construction Tests
// =============================================================================

// TestNewWebhook_Validation verifies the URL is required and defaults fill
// in.
func TestNewWebhook_Validation(t *testing.T) {
	if _, err := New(Config{}, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing url")
	}

	w, err := New(Config{URL: "http://example.com/hook"}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if w.config.MinTier != scoring.TierCritical {
		t.Errorf("expected default floor critical, got %q", w.config.MinTier)
	}
}

// =============================================================================
// Delivery Tests
// =============================================================================

// TestWebhook_NotifyDelivers verifies a critical signal posts the payload
// with the bearer token and updates the stats.
func TestWebhook_NotifyDelivers(t *testing.T) {
	var gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer hook-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody.Store(string(buf))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	os.Setenv("TEST_HOOK_TOKEN", "hook-token")
	defer os.Unsetenv("TEST_HOOK_TOKEN")

	w, err := New(Config{URL: server.URL, TokenEnv: "TEST_HOOK_TOKEN", RetryCount: 0}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("creating webhook: %v", err)
	}

	sig := &signal.Signal{ID: "sig-1", Entity: "0xaaa"}
	delivered, err := w.Notify(context.Background(), sig, criticalResult(), scoring.Event{Label: "High-Risk Distribution"})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !delivered {
		t.Fatal("expected delivery for critical tier")
	}

	body, _ := gotBody.Load().(string)
	if !strings.Contains(body, `"entity":"0xaaa"`) || !strings.Contains(body, `"tier":"critical"`) {
		t.Errorf("unexpected payload: %s", body)
	}

	stats := w.Stats()
	if stats.AlertsSent != 1 || stats.AlertsFailed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.BytesSent == 0 || stats.LastSentAt.IsZero() {
		t.Errorf("delivery accounting missing: %+v", stats)
	}
}

// TestWebhook_NotifyBelowFloor verifies signals under the tier floor never
// reach the endpoint.
func TestWebhook_NotifyBelowFloor(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	w, _ := New(Config{URL: server.URL}, nil, zap.NewNop())

	res := scoring.Result{Score: 50, Tier: scoring.TierNotable}
	delivered, err := w.Notify(context.Background(), &signal.Signal{ID: "sig-1"}, res, scoring.Event{})
	if err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if delivered {
		t.Error("notable should not clear the critical floor")
	}
	if requests.Load() != 0 {
		t.Errorf("expected no requests, got %d", requests.Load())
	}
}

// TestWebhook_LoweredFloor verifies a notable floor lets notable through
// and still blocks low.
func TestWebhook_LoweredFloor(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	w, _ := New(Config{URL: server.URL, MinTier: scoring.TierNotable, RetryCount: 0}, nil, zap.NewNop())

	notable := scoring.Result{Score: 50, Tier: scoring.TierNotable}
	if delivered, err := w.Notify(context.Background(), &signal.Signal{ID: "sig-1"}, notable, scoring.Event{}); err != nil || !delivered {
		t.Errorf("expected notable to deliver: delivered=%v err=%v", delivered, err)
	}

	low := scoring.Result{Score: 10, Tier: scoring.TierLow}
	if delivered, _ := w.Notify(context.Background(), &signal.Signal{ID: "sig-2"}, low, scoring.Event{}); delivered {
		t.Error("low should not clear a notable floor")
	}

	if requests.Load() != 1 {
		t.Errorf("expected exactly 1 request, got %d", requests.Load())
	}
}

// TestWebhook_DeliveryFailure verifies a rejecting endpoint surfaces an
// error and counts the failure.
func TestWebhook_DeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`downstream unavailable`))
	}))
	defer server.Close()

	w, _ := New(Config{URL: server.URL, RetryCount: 0}, nil, zap.NewNop())

	delivered, err := w.Notify(context.Background(), &signal.Signal{ID: "sig-1"}, criticalResult(), scoring.Event{})
	if !delivered {
		t.Error("delivery should have been attempted")
	}
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry status, got: %v", err)
	}

	stats := w.Stats()
	if stats.AlertsFailed != 1 || stats.AlertsSent != 0 {
		t.Errorf("unexpected stats after failure: %+v", stats)
	}
}
