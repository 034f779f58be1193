// Package source pulls signals into the store from external feeds. Each
// registered source is polled on a shared interval; the manager owns the
// polling goroutines and normalizes whatever the sources return.
package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/observability"
	"github.com/nlowell/chainsignal/internal/signal"
	"github.com/nlowell/chainsignal/internal/store"
)

// Source is the interface for signal feeds.
type Source interface {
	// Name identifies the source in logs, metrics, and stored signals.
	Name() string
	// Fetch returns the signals currently offered by the source.
	Fetch(ctx context.Context) ([]*signal.Signal, error)
	// HealthCheck verifies the source is reachable.
	HealthCheck(ctx context.Context) error
}

// Manager polls registered sources and stores what they return.
type Manager struct {
	store     store.Store
	telemetry *observability.Telemetry
	logger    *zap.Logger
	interval  time.Duration

	sources []Source
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager polling at the given interval. A
// non-positive interval defaults to five minutes.
func NewManager(st store.Store, tel *observability.Telemetry, logger *zap.Logger, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Manager{
		store:     st,
		telemetry: tel,
		logger:    logger,
		interval:  interval,
	}
}

// Register adds a source. Must be called before Start.
func (m *Manager) Register(src Source) {
	m.sources = append(m.sources, src)
}

// Start polls every source once immediately, then on the interval, until
// the context is canceled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	for _, src := range m.sources {
		m.wg.Add(1)
		go m.poll(ctx, src)
	}

	m.logger.Info("Source polling started",
		zap.Int("sources", len(m.sources)),
		zap.Duration("interval", m.interval))
}

// Stop cancels polling and waits for in-flight polls to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Manager) poll(ctx context.Context, src Source) {
	defer m.wg.Done()

	m.collect(ctx, src)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect(ctx, src)
		}
	}
}

func (m *Manager) collect(ctx context.Context, src Source) {
	sigs, err := src.Fetch(ctx)
	if err != nil {
		m.telemetry.RecordSourcePoll(src.Name(), "error")
		m.logger.Warn("Source poll failed",
			zap.String("source", src.Name()),
			zap.Error(err))
		return
	}

	stored := 0
	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		sig.Normalize(src.Name())
		if err := m.store.Put(ctx, sig); err != nil {
			m.logger.Warn("Storing polled signal failed",
				zap.String("source", src.Name()),
				zap.String("signal_id", sig.ID),
				zap.Error(err))
			continue
		}
		m.telemetry.RecordIngested(sig.Source)
		stored++
	}

	m.telemetry.RecordSourcePoll(src.Name(), "ok")
	m.logger.Info("Source poll complete",
		zap.String("source", src.Name()),
		zap.Int("signals", stored))
}
