// Package snapshot records periodic frozen views of the feed statistics
// so operators can see how the signal set evolved between polls.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/feed"
	"github.com/nlowell/chainsignal/internal/observability"
)

// Snapshot is a frozen view of the feed statistics at one instant.
type Snapshot struct {
	ID      string      `json:"id"`
	TakenAt time.Time   `json:"takenAt"`
	Stats   *feed.Stats `json:"stats"`
}

// Snapshotter takes snapshots on a cron schedule and keeps a bounded
// in-memory history, newest first.
type Snapshotter struct {
	feed      *feed.Feed
	telemetry *observability.Telemetry
	logger    *zap.Logger

	schedule   string
	maxHistory int

	cron *cron.Cron

	mu      sync.RWMutex
	history []*Snapshot
}

// New creates a snapshotter. An empty schedule defaults to hourly; a
// non-positive maxHistory keeps the last 24 snapshots.
func New(f *feed.Feed, tel *observability.Telemetry, logger *zap.Logger, schedule string, maxHistory int) *Snapshotter {
	if schedule == "" {
		schedule = "@hourly"
	}
	if maxHistory <= 0 {
		maxHistory = 24
	}
	return &Snapshotter{
		feed:       f,
		telemetry:  tel,
		logger:     logger,
		schedule:   schedule,
		maxHistory: maxHistory,
	}
}

// Start registers the schedule and begins taking snapshots.
func (s *Snapshotter) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Run(context.Background()); err != nil {
			s.logger.Warn("Scheduled snapshot failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("registering snapshot schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("Snapshot schedule started",
		zap.String("schedule", s.schedule),
		zap.Int("max_history", s.maxHistory))
	return nil
}

// Stop halts the schedule and waits for an in-flight snapshot to finish.
func (s *Snapshotter) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run takes a snapshot immediately and prepends it to the history.
func (s *Snapshotter) Run(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	stats, err := s.feed.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing snapshot stats: %w", err)
	}

	snap := &Snapshot{
		ID:      uuid.NewString(),
		TakenAt: time.Now().UTC(),
		Stats:   stats,
	}

	s.mu.Lock()
	s.history = append([]*Snapshot{snap}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
	s.mu.Unlock()

	s.telemetry.RecordSnapshot(time.Since(start))
	s.logger.Info("Snapshot recorded",
		zap.String("snapshot_id", snap.ID),
		zap.Int("total_signals", stats.TotalSignals),
		zap.Int("top_score", stats.TopScore))
	return snap, nil
}

// History returns up to limit snapshots, newest first. A non-positive
// limit returns the full retained history.
func (s *Snapshotter) History(limit int) []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Snapshot, n)
	copy(out, s.history[:n])
	return out
}
