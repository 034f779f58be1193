package scoring

import (
	"fmt"

	"github.com/nlowell/chainsignal/internal/signal"
)

// Event severity levels. Independent of score tiers: a signal can score low
// yet classify as a high-severity event, and vice versa.
const (
	SeverityHigh    = "high"
	SeverityMedium  = "medium"
	SeverityLow     = "low"
	SeverityNeutral = "neutral"
)

// Event is the narrative classification of a signal: a headline label, a
// severity, and a one-line explanation for the feed card.
type Event struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Why      string `json:"why"`
}

// ClassifyEvent maps raw signal fields to a narrative event. Rules are
// evaluated top to bottom and the first match wins; several predicates
// overlap (a signal can be both bridge-aligned and behavior-changed), so
// the order is part of the contract.
func ClassifyEvent(sig *signal.Signal) Event {
	if sig == nil {
		sig = &signal.Signal{}
	}

	switch {
	case sig.BridgeAligned && sig.Behavior == signal.BehaviorAccumulating:
		return Event{
			Label:    "Coordinated Accumulation",
			Severity: SeverityHigh,
			Why:      fmt.Sprintf("accumulating in step with %d other tracked entities", alignedOrDefault(sig)),
		}
	case sig.BridgeAligned && sig.Behavior == signal.BehaviorDistributing:
		return Event{
			Label:    "Coordinated Distribution",
			Severity: SeverityHigh,
			Why:      fmt.Sprintf("distributing in step with %d other tracked entities", alignedOrDefault(sig)),
		}
	case sig.BridgeAligned:
		return Event{
			Label:    "Coordinated Activity",
			Severity: SeverityMedium,
			Why:      fmt.Sprintf("activity aligned with %d other tracked entities", alignedOrDefault(sig)),
		}
	case sig.RiskLevel == signal.RiskHigh && sig.Behavior == signal.BehaviorDistributing:
		return Event{
			Label:    "High-Risk Distribution",
			Severity: SeverityHigh,
			Why:      "high-risk entity moving holdings out",
		}
	case sig.RiskLevel == signal.RiskHigh:
		return Event{
			Label:    "High-Risk Entity",
			Severity: SeverityMedium,
			Why:      "upstream model flags this entity as high risk",
		}
	case sig.BehaviorChanged && sig.Behavior == signal.BehaviorDistributing:
		return Event{
			Label:    "Distribution Shift",
			Severity: SeverityMedium,
			Why:      "entity switched to distributing",
		}
	case sig.BehaviorChanged && sig.Behavior == signal.BehaviorAccumulating:
		return Event{
			Label:    "Accumulation Shift",
			Severity: SeverityMedium,
			Why:      "entity switched to accumulating",
		}
	case sig.BehaviorChanged:
		return Event{
			Label:    "Behavior Shift",
			Severity: SeverityLow,
			Why:      "behavior changed since last observation",
		}
	case sig.Behavior == signal.BehaviorDormant:
		return Event{
			Label:    "Gone Quiet",
			Severity: SeverityLow,
			Why:      dormantWhy(sig),
		}
	default:
		return Event{
			Label:    "Monitoring",
			Severity: SeverityNeutral,
			Why:      "no notable change in the current window",
		}
	}
}

func dormantWhy(sig *signal.Signal) string {
	if sig.DormantDays != nil {
		return fmt.Sprintf("no activity for %d days", *sig.DormantDays)
	}
	return "entity has gone dormant"
}
