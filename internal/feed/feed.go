// Package feed computes the scored read model served by the API: single
// evaluations, batch scoring, the leaderboard, and aggregate statistics.
// Nothing here is persisted; every call recomputes from the raw signals.
package feed

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nlowell/chainsignal/internal/observability"
	"github.com/nlowell/chainsignal/internal/scoring"
	"github.com/nlowell/chainsignal/internal/signal"
	"github.com/nlowell/chainsignal/internal/store"
)

// Scored pairs a raw signal with its computed score and event label.
type Scored struct {
	Signal *signal.Signal `json:"signal"`
	Result scoring.Result `json:"result"`
	Event  scoring.Event  `json:"event"`
}

// Stats summarizes the stored signal set at a point in time.
type Stats struct {
	TotalSignals  int            `json:"totalSignals"`
	ScoredSignals int            `json:"scoredSignals"`
	AvgScore      float64        `json:"avgScore"`
	TopScore      int            `json:"topScore"`
	Tiers         map[string]int `json:"tiers"`
	Lifecycles    map[string]int `json:"lifecycles"`
}

// BatchResult reports how a batch scoring call was handled.
type BatchResult struct {
	Processed  int `json:"processed"`
	Calculated int `json:"calculated"`
	Skipped    int `json:"skipped"`
}

// Feed serves scored views over a signal store.
type Feed struct {
	store     store.Store
	telemetry *observability.Telemetry
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a feed over the given store.
func New(st store.Store, tel *observability.Telemetry, logger *zap.Logger) *Feed {
	return &Feed{
		store:     st,
		telemetry: tel,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate scores the stored signal with the given ID.
func (f *Feed) Evaluate(ctx context.Context, id string) (*Scored, error) {
	sig, err := f.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.evaluate(sig), nil
}

// EvaluateSignal scores an inbound signal without storing it.
func (f *Feed) EvaluateSignal(sig *signal.Signal) *Scored {
	return f.evaluate(sig)
}

// ScoreBatch scores a set of inbound signals without storing them. A
// signal with no contributing factors counts as skipped.
func (f *Feed) ScoreBatch(sigs []*signal.Signal) (*BatchResult, []*Scored) {
	res := &BatchResult{}
	out := make([]*Scored, 0, len(sigs))

	for _, sig := range sigs {
		if sig == nil {
			continue
		}
		res.Processed++
		s := f.evaluate(sig)
		if s.Result.OriginalScore == 0 {
			res.Skipped++
		} else {
			res.Calculated++
		}
		out = append(out, s)
	}
	return res, out
}

// Batch recomputes every stored signal in one pass and reports how many
// produced a score. Nothing is persisted.
func (f *Feed) Batch(ctx context.Context) (*BatchResult, error) {
	sigs, err := f.store.List(ctx)
	if err != nil {
		return nil, err
	}
	res, _ := f.ScoreBatch(sigs)
	return res, nil
}

// Leaderboard returns stored signals scored and ranked by descending
// score, ties broken by entity for a stable order. Signals under minScore
// are dropped before the limit applies.
func (f *Feed) Leaderboard(ctx context.Context, limit, minScore int) ([]*Scored, error) {
	sigs, err := f.store.List(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]*Scored, 0, len(sigs))
	for _, sig := range sigs {
		s := f.evaluate(sig)
		if s.Result.Score < minScore {
			continue
		}
		scored = append(scored, s)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Result.Score != scored[j].Result.Score {
			return scored[i].Result.Score > scored[j].Result.Score
		}
		return scored[i].Signal.Entity < scored[j].Signal.Entity
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Stats recomputes aggregates across all stored signals. AvgScore is
// rounded to one decimal; ScoredSignals counts records with at least one
// contributing factor.
func (f *Feed) Stats(ctx context.Context) (*Stats, error) {
	sigs, err := f.store.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalSignals: len(sigs),
		Tiers:        make(map[string]int),
		Lifecycles:   make(map[string]int),
	}

	sum := 0
	for _, sig := range sigs {
		s := f.evaluate(sig)
		st.Tiers[s.Result.Tier]++
		st.Lifecycles[s.Result.Lifecycle]++
		if s.Result.OriginalScore > 0 {
			st.ScoredSignals++
		}
		sum += s.Result.Score
		if s.Result.Score > st.TopScore {
			st.TopScore = s.Result.Score
		}
	}

	if st.TotalSignals > 0 {
		st.AvgScore = math.Round(float64(sum)/float64(st.TotalSignals)*10) / 10
	}

	for _, stage := range []string{scoring.StageNew, scoring.StageActive, scoring.StageCooling, scoring.StageArchived} {
		f.telemetry.SetLifecycleCount(stage, st.Lifecycles[stage])
	}
	return st, nil
}

func (f *Feed) evaluate(sig *signal.Signal) *Scored {
	res := scoring.Score(sig, f.now())
	ev := scoring.ClassifyEvent(sig)
	f.telemetry.RecordScored(res.Tier, res.Score)
	return &Scored{Signal: sig, Result: res, Event: ev}
}
