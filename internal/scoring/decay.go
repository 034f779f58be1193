package scoring

import (
	"math"
	"time"
)

// Decay constants: scores hold for a grace window after observation, then
// bleed two points per hour.
const (
	graceHours   = 6.0
	decayPerHour = 2.0
	msPerHour    = 3_600_000.0
)

// decayResult is the normalized decay output. The upstream contract allows
// a bare pass-through when no timestamp exists; returning one struct shape
// for every case keeps callers honest.
type decayResult struct {
	Score      int
	Decay      int
	AgeInHours int
	Decayed    bool
}

// decayScore reduces base by elapsed time since the observation timestamp.
// A missing timestamp disables decay entirely. hasRecentActivity (the "24h"
// status flag) also suppresses decay regardless of age.
//
// AgeInHours is floored for reporting and clamped to zero for future
// timestamps, but the decay math runs on the raw float so the grace window
// boundary lands exactly at six hours.
func decayScore(base int, timestampMs int64, hasRecentActivity bool, now time.Time) decayResult {
	if timestampMs <= 0 {
		return decayResult{Score: base}
	}

	ageHours := float64(now.UnixMilli()-timestampMs) / msPerHour

	reported := int(math.Floor(ageHours))
	if reported < 0 {
		reported = 0
	}

	if ageHours < graceHours || hasRecentActivity {
		return decayResult{Score: base, AgeInHours: reported}
	}

	decay := int(math.Floor((ageHours - graceHours) * decayPerHour))
	score := base - decay
	if score < 0 {
		score = 0
	}

	return decayResult{
		Score:      score,
		Decay:      decay,
		AgeInHours: reported,
		Decayed:    decay > 0,
	}
}
