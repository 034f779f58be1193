// Package scoring implements the signal confidence engine: a pure function
// pipeline that turns a raw signal record into a bounded 0-100 score with a
// per-factor breakdown, applies time-based decay, and classifies the signal
// into a lifecycle stage and a narrative event type.
//
// Every function in this package is stateless and side-effect free. The
// clock is an explicit parameter, so results are deterministic for a fixed
// now and concurrent invocations need no coordination.
package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/nlowell/chainsignal/internal/signal"
)

// Factor caps. The five factors sum to a raw score which is itself capped
// at maxScore before decay.
const (
	coordinationCap = 20
	magnitudeCap    = 20
	maxScore        = 100
)

// Icon keys, one per factor. The dashboard maps these to glyphs.
const (
	iconBehavior     = "shuffle"
	iconRisk         = "shield-alert"
	iconCoordination = "link"
	iconMagnitude    = "trending-up"
	iconRecency      = "clock"
)

// Tier buckets derived from the final (post-decay) score.
const (
	TierCritical = "critical"
	TierNotable  = "notable"
	TierLow      = "low"
)

// BreakdownEntry is one factor's contribution to the pre-decay score.
type BreakdownEntry struct {
	Component string `json:"component"`
	Score     int    `json:"score"`
	Reason    string `json:"reason"`
	Icon      string `json:"icon"`
}

// Result is the full scoring output for one signal. It is built fresh on
// every call and never persisted; the feed recomputes it per query.
type Result struct {
	Score         int              `json:"score"`
	OriginalScore int              `json:"originalScore"`
	Decayed       bool             `json:"decayed"`
	Decay         int              `json:"decay"`
	AgeInHours    int              `json:"ageInHours"`
	Breakdown     []BreakdownEntry `json:"breakdown"`
	TopReasons    []BreakdownEntry `json:"topReasons"`
	Tier          string           `json:"tier"`
	Lifecycle     string           `json:"lifecycle"`
}

// Score runs the full pipeline for one signal: factor scoring, decay,
// lifecycle, and tier. A nil signal scores as an empty record.
func Score(sig *signal.Signal, now time.Time) Result {
	if sig == nil {
		sig = &signal.Signal{}
	}

	raw, breakdown := scoreFactors(sig)

	original := raw
	if original > maxScore {
		original = maxScore
	}

	// Descending by contribution; ties keep factor-evaluation order.
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].Score > breakdown[j].Score
	})

	d := decayScore(original, sig.Timestamp, sig.HasRecentActivity(), now)

	top := breakdown
	if len(top) > 3 {
		top = top[:3]
	}

	return Result{
		Score:         d.Score,
		OriginalScore: original,
		Decayed:       d.Decayed,
		Decay:         d.Decay,
		AgeInHours:    d.AgeInHours,
		Breakdown:     breakdown,
		TopReasons:    top,
		Tier:          TierFor(d.Score),
		Lifecycle:     LifecycleFor(sig.Timestamp, d.Score, now),
	}
}

// scoreFactors evaluates the five factors in their fixed order. Within a
// factor the first matching branch wins. Zero-score factors contribute no
// breakdown entry.
func scoreFactors(sig *signal.Signal) (int, []BreakdownEntry) {
	total := 0
	breakdown := make([]BreakdownEntry, 0, 5)

	add := func(component string, score int, reason, icon string) {
		total += score
		breakdown = append(breakdown, BreakdownEntry{
			Component: component,
			Score:     score,
			Reason:    reason,
			Icon:      icon,
		})
	}

	// Behavior (max 25): a flagged change outranks steady-state distribution.
	switch {
	case sig.BehaviorChanged && sig.Behavior == signal.BehaviorDistributing:
		add("behavior", 25, "Started distributing", iconBehavior)
	case sig.BehaviorChanged && sig.Behavior == signal.BehaviorAccumulating:
		add("behavior", 20, "Started accumulating", iconBehavior)
	case sig.BehaviorChanged:
		add("behavior", 15, "Behavior pattern shifted", iconBehavior)
	case sig.Behavior == signal.BehaviorDistributing:
		add("behavior", 10, "Ongoing distribution", iconBehavior)
	}

	// Risk (max 20).
	switch sig.RiskLevel {
	case signal.RiskHigh:
		add("risk", 20, "High risk classification", iconRisk)
	case signal.RiskMedium:
		add("risk", 10, "Medium risk classification", iconRisk)
	}

	// Coordination (max 20): 10 base plus 3 per aligned entity.
	if sig.BridgeAligned {
		aligned := alignedOrDefault(sig)
		score := 10 + aligned*3
		if score > coordinationCap {
			score = coordinationCap
		}
		add("coordination", score,
			fmt.Sprintf("Aligned with %d tracked entities", aligned), iconCoordination)
	}

	// Magnitude (max 20): flow deltas dominate; attention score is the
	// fallback signal.
	switch {
	case len(sig.DeltaSignals) > 0:
		score := 10 + len(sig.DeltaSignals)*5
		if score > magnitudeCap {
			score = magnitudeCap
		}
		add("magnitude", score,
			fmt.Sprintf("%d flow deltas in window", len(sig.DeltaSignals)), iconMagnitude)
	case sig.AttentionScore > 60:
		add("magnitude", 15, "Elevated attention score", iconMagnitude)
	}

	// Recency (max 15): the 24h flag wins; "dormant zero days" means the
	// entity was active today, which only counts when the field is present.
	switch {
	case sig.HasRecentActivity():
		add("recency", 15, "Status change within 24h", iconRecency)
	case sig.DormantDays != nil && *sig.DormantDays == 0:
		add("recency", 5, "Active today", iconRecency)
	}

	return total, breakdown
}

// TierFor buckets a final score for visual emphasis.
func TierFor(score int) string {
	switch {
	case score >= 70:
		return TierCritical
	case score >= 40:
		return TierNotable
	default:
		return TierLow
	}
}

// alignedOrDefault returns the aligned-entity count, defaulting to 2 when
// the field is unset: upstream sends 0 for "aligned but uncounted".
func alignedOrDefault(sig *signal.Signal) int {
	if sig.AlignedCount > 0 {
		return sig.AlignedCount
	}
	return 2
}
