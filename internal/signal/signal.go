// Package signal defines the raw entity-behavior observations that
// ChainSignal scores, classifies, and ranks.
package signal

import (
	"strings"

	"github.com/google/uuid"
)

// Behavior is the behavioral state reported for a tracked entity.
type Behavior string

// Known behavior states. Anything else is treated as BehaviorOther by
// every consumer.
const (
	BehaviorAccumulating Behavior = "accumulating"
	BehaviorDistributing Behavior = "distributing"
	BehaviorDormant      Behavior = "dormant"
	BehaviorOther        Behavior = "other"
)

// RiskLevel is the upstream risk classification of an entity.
type RiskLevel string

// Risk levels. An empty value means the upstream did not classify.
const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// StatusRecent24h is the only statusChange value with meaning: it marks the
// signal as having fresh activity, which both feeds the recency factor and
// suppresses decay.
const StatusRecent24h = "24h"

// Signal is a single observed entity-behavior event. All fields are
// optional: upstream collaborators send partial records and every consumer
// tolerates the zero value.
//
// Timestamp is Unix epoch milliseconds; 0 means absent, which disables
// decay and defaults the lifecycle stage. DormantDays is a pointer because
// "present and zero" (active today) scores differently from "absent".
type Signal struct {
	ID     string `json:"id,omitempty" yaml:"id"`
	Entity string `json:"entity,omitempty" yaml:"entity"`
	Source string `json:"source,omitempty" yaml:"source"`

	BehaviorChanged bool             `json:"behaviorChanged,omitempty" yaml:"behavior_changed"`
	Behavior        Behavior         `json:"behavior,omitempty" yaml:"behavior"`
	RiskLevel       RiskLevel        `json:"riskLevel,omitempty" yaml:"risk_level"`
	BridgeAligned   bool             `json:"bridgeAligned,omitempty" yaml:"bridge_aligned"`
	AlignedCount    int              `json:"alignedCount,omitempty" yaml:"aligned_count"`
	DeltaSignals    []map[string]any `json:"deltaSignals,omitempty" yaml:"delta_signals"`
	AttentionScore  float64          `json:"attentionScore,omitempty" yaml:"attention_score"`
	StatusChange    string           `json:"statusChange,omitempty" yaml:"status_change"`
	DormantDays     *int             `json:"dormantDays,omitempty" yaml:"dormant_days"`
	Timestamp       int64            `json:"timestamp,omitempty" yaml:"timestamp"`
}

// Normalize fills identity defaults on an inbound record: a generated ID
// when none was supplied, the receiving source name, and a trimmed entity
// handle. Scoring defaults (aligned count, absent fields) stay with the
// engine so stored records keep their received shape.
func (s *Signal) Normalize(source string) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Source == "" {
		s.Source = source
	}
	s.Entity = strings.TrimSpace(s.Entity)
}

// HasTimestamp reports whether the signal carries an observation time.
func (s *Signal) HasTimestamp() bool {
	return s.Timestamp > 0
}

// HasRecentActivity reports whether the coarse recency flag is set. The
// same flag feeds the recency score factor and suppresses decay, so it is
// defined once here.
func (s *Signal) HasRecentActivity() bool {
	return s.StatusChange == StatusRecent24h
}
