package feed

import (
	"context"
	"sort"
	"time"

	"github.com/nlowell/chainsignal/internal/scoring"
	"github.com/nlowell/chainsignal/internal/signal"
)

// Cluster groups entities that showed the same behavior inside the
// observation window.
type Cluster struct {
	Behavior string   `json:"behavior"`
	Entities []string `json:"entities"`
	Count    int      `json:"count"`
	TopScore int      `json:"topScore"`
	Tier     string   `json:"tier"`
}

// Network groups recent signals by behavior. Only behaviors shown by at
// least two distinct entities form a cluster; clusters are ordered by
// entity count, ties broken by behavior name. Signals without a timestamp
// are treated as current and always participate.
func (f *Feed) Network(ctx context.Context, window time.Duration) ([]*Cluster, error) {
	sigs, err := f.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := f.now()
	cutoff := now.Add(-window)

	// behavior -> entity -> best score seen in the window
	byBehavior := make(map[signal.Behavior]map[string]int)
	for _, sig := range sigs {
		if sig.Behavior == "" || sig.Entity == "" {
			continue
		}
		if sig.HasTimestamp() && time.UnixMilli(sig.Timestamp).Before(cutoff) {
			continue
		}

		res := scoring.Score(sig, now)
		entities := byBehavior[sig.Behavior]
		if entities == nil {
			entities = make(map[string]int)
			byBehavior[sig.Behavior] = entities
		}
		if best, ok := entities[sig.Entity]; !ok || res.Score > best {
			entities[sig.Entity] = res.Score
		}
	}

	clusters := make([]*Cluster, 0, len(byBehavior))
	for behavior, entities := range byBehavior {
		if len(entities) < 2 {
			continue
		}

		names := make([]string, 0, len(entities))
		top := 0
		for entity, score := range entities {
			names = append(names, entity)
			if score > top {
				top = score
			}
		}
		sort.Strings(names)

		clusters = append(clusters, &Cluster{
			Behavior: string(behavior),
			Entities: names,
			Count:    len(names),
			TopScore: top,
			Tier:     scoring.TierFor(top),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].Behavior < clusters[j].Behavior
	})
	return clusters, nil
}
