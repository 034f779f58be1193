package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/feed"
	"github.com/nlowell/chainsignal/internal/scoring"
	"github.com/nlowell/chainsignal/internal/signal"
	"github.com/nlowell/chainsignal/internal/store"
)

// respond writes a JSON success envelope with ok:true folded in.
func respond(w http.ResponseWriter, status int, body map[string]interface{}) {
	body["ok"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondError writes the {ok:false, error} envelope.
func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": msg})
}

// Health and readiness handlers

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": a.opts.Version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.telemetry.SetHealth("store", false)
		respondError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	a.telemetry.SetHealth("store", true)
	respond(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// Signal handlers

func (a *API) handleIngestSignal(w http.ResponseWriter, r *http.Request) {
	ctx, span := a.telemetry.StartSpan(r.Context(), "api.ingest")
	defer span.End()

	var sig signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(sig.Entity) == "" {
		respondError(w, http.StatusBadRequest, "entity is required")
		return
	}

	sig.Normalize("api")

	if err := a.store.Put(ctx, &sig); err != nil {
		a.telemetry.RecordError(ctx, err, zap.String("entity", sig.Entity))
		respondError(w, http.StatusInternalServerError, "storing signal")
		return
	}
	a.telemetry.RecordIngested(sig.Source)

	scored := a.feed.EvaluateSignal(&sig)

	// Delivery runs async so a slow webhook cannot hold the ingest response.
	go a.dispatchAlert(context.Background(), scored)

	respond(w, http.StatusCreated, map[string]interface{}{
		"id":     sig.ID,
		"result": scored.Result,
		"event":  scored.Event,
	})
}

func (a *API) handleListSignals(w http.ResponseWriter, r *http.Request) {
	// Full table for the admin view, ranked the same way as the leaderboard
	// so the order is stable across calls.
	scored, err := a.feed.Leaderboard(r.Context(), 0, 0)
	if err != nil {
		a.logger.Error("listing signals failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing signals")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"signals": scored,
		"count":   len(scored),
	})
}

func (a *API) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	scored, err := a.feed.Evaluate(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "signal not found")
			return
		}
		a.logger.Error("loading signal failed", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "loading signal")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"signal": scored.Signal,
		"result": scored.Result,
		"event":  scored.Event,
		"styles": map[string]scoring.Style{
			"tier":      scoring.TierStyle(scored.Result.Tier),
			"lifecycle": scoring.LifecycleStyle(scored.Result.Lifecycle),
			"severity":  scoring.SeverityStyle(scored.Event.Severity),
		},
	})
}

func (a *API) handleDeleteSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "signal not found")
			return
		}
		a.logger.Error("deleting signal failed", zap.String("id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "deleting signal")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": "deleted",
	})
}

// Scoring handlers

func (a *API) handleScore(w http.ResponseWriter, r *http.Request) {
	var sig signal.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scored := a.feed.EvaluateSignal(&sig)

	respond(w, http.StatusOK, map[string]interface{}{
		"result": scored.Result,
		"event":  scored.Event,
	})
}

// handleScoreBatch recomputes every stored signal in one pass. The request
// body is ignored; batch scoring always covers the full feed.
func (a *API) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := a.feed.Batch(r.Context())
	if err != nil {
		a.logger.Error("batch scoring failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "scoring batch")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"processed":  batch.Processed,
		"calculated": batch.Calculated,
		"skipped":    batch.Skipped,
	})
}

// Feed handlers

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := a.opts.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > a.opts.MaxLimit {
		limit = a.opts.MaxLimit
	}

	minScore := 0
	if raw := r.URL.Query().Get("minScore"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "minScore must be an integer")
			return
		}
		minScore = n
	}

	scored, err := a.feed.Leaderboard(r.Context(), limit, minScore)
	if err != nil {
		a.logger.Error("building leaderboard failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "building leaderboard")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"signals": scored,
		"count":   len(scored),
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.feed.Stats(r.Context())
	if err != nil {
		a.logger.Error("computing stats failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "computing stats")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (a *API) handleNetwork(w http.ResponseWriter, r *http.Request) {
	window := a.opts.NetworkWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "window must be a positive duration such as 24h")
			return
		}
		window = d
	}

	clusters, err := a.feed.Network(r.Context(), window)
	if err != nil {
		a.logger.Error("building network view failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "building network view")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
		"window":   window.String(),
	})
}

// Snapshot handlers

func (a *API) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		respondError(w, http.StatusServiceUnavailable, "snapshots are disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	snaps := a.snapshots.History(limit)
	respond(w, http.StatusOK, map[string]interface{}{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

func (a *API) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		respondError(w, http.StatusServiceUnavailable, "snapshots are disabled")
		return
	}

	snap, err := a.snapshots.Run(r.Context())
	if err != nil {
		a.logger.Error("taking snapshot failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "taking snapshot")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{"snapshot": snap})
}

// dispatchAlert forwards a scored signal to the webhook when one is
// configured. Failures are logged, never surfaced to the API caller.
func (a *API) dispatchAlert(ctx context.Context, s *feed.Scored) {
	if a.notifier == nil {
		return
	}
	if sent, err := a.notifier.Notify(ctx, s.Signal, s.Result, s.Event); sent && err != nil {
		a.logger.Warn("alert delivery failed",
			zap.String("id", s.Signal.ID),
			zap.Error(err),
		)
	}
}
