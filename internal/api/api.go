// Package api assembles the HTTP surface: the chi route tree, the JSON
// handlers over the feed and store, and the Redis-backed rate limiter.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/feed"
	"github.com/nlowell/chainsignal/internal/notify"
	"github.com/nlowell/chainsignal/internal/observability"
	"github.com/nlowell/chainsignal/internal/snapshot"
	"github.com/nlowell/chainsignal/internal/store"
)

// Options tunes the query surface.
type Options struct {
	Version       string
	DefaultLimit  int
	MaxLimit      int
	NetworkWindow time.Duration
}

// API owns the HTTP handlers and their dependencies. Snapshotter and
// notifier are optional; handlers degrade when they are absent.
type API struct {
	store     store.Store
	feed      *feed.Feed
	snapshots *snapshot.Snapshotter
	notifier  *notify.Webhook
	telemetry *observability.Telemetry
	logger    *zap.Logger
	opts      Options
}

// New wires the handler set.
func New(st store.Store, f *feed.Feed, snaps *snapshot.Snapshotter, n *notify.Webhook, tel *observability.Telemetry, logger *zap.Logger, opts Options) *API {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 25
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.NetworkWindow <= 0 {
		opts.NetworkWindow = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &API{
		store:     st,
		feed:      f,
		snapshots: snaps,
		notifier:  n,
		telemetry: tel,
		logger:    logger,
		opts:      opts,
	}
}

// Router assembles the full route tree. A nil limiter leaves rate
// limiting off.
func (a *API) Router(limiter *RateLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(a.instrument)

	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/health", a.handleHealth)
	r.Get("/ready", a.handleReady)
	r.Handle("/metrics", a.telemetry.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/signals", a.handleIngestSignal)
		r.Get("/signals", a.handleListSignals)
		r.Get("/signals/{id}", a.handleGetSignal)
		r.Delete("/signals/{id}", a.handleDeleteSignal)

		r.Post("/score", a.handleScore)
		r.Post("/score/batch", a.handleScoreBatch)

		r.Get("/leaderboard", a.handleLeaderboard)
		r.Get("/stats", a.handleStats)
		r.Get("/network", a.handleNetwork)

		r.Get("/snapshots", a.handleListSnapshots)
		r.Post("/snapshots/run", a.handleRunSnapshot)
	})

	return r
}

// instrument records per-request metrics and a structured access log. The
// matched route pattern labels the metric, not the raw path, so
// /signals/{id} stays one series.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		a.telemetry.RecordRequest(r.Method, path, ww.Status(), time.Since(start))
		a.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
