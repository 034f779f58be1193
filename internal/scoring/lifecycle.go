package scoring

import "time"

// Lifecycle stages, the coarse age/health buckets the dashboard sorts by.
const (
	StageNew      = "new"
	StageActive   = "active"
	StageCooling  = "cooling"
	StageArchived = "archived"
)

// LifecycleFor classifies a signal by age and post-decay score. It is
// memoryless: no previous stage is stored, every call reclassifies from
// scratch.
//
// Rules run in order and the first match wins. The archived check runs
// before cooling on purpose: an 80-hour-old signal archives even when its
// score would otherwise only cool it. Do not reorder.
func LifecycleFor(timestampMs int64, score int, now time.Time) string {
	if timestampMs <= 0 {
		return StageActive
	}

	ageHours := float64(now.UnixMilli()-timestampMs) / msPerHour

	switch {
	case ageHours < 2:
		return StageNew
	case ageHours > 72 || score < 20:
		return StageArchived
	case ageHours > 24 || score < 40:
		return StageCooling
	default:
		return StageActive
	}
}
