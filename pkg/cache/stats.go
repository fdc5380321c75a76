package cache

import (
	"context"
	"sync/atomic"
)

// numTiers must match len(Tiers).
const numTiers = 4

// counters tracks hits and misses per tier since process start.
type counters struct {
	hits   [numTiers]atomic.Int64
	misses [numTiers]atomic.Int64
}

func tierIndex(tier Tier) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return 0
}

func (c *counters) hit(tier Tier)  { c.hits[tierIndex(tier)].Add(1) }
func (c *counters) miss(tier Tier) { c.misses[tierIndex(tier)].Add(1) }

// TierStats summarizes one tier for the stats endpoint.
type TierStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Stats is the per-tier breakdown plus totals.
type Stats struct {
	Tiers   map[Tier]TierStats `json:"tiers"`
	Hits    int64              `json:"total_hits"`
	Misses  int64              `json:"total_misses"`
	Entries int                `json:"total_entries"`
}

// Stats reports hit/miss counters and current entry counts. Counters reset
// on restart; entry counts come from the backing store.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	out := Stats{Tiers: make(map[Tier]TierStats, len(Tiers))}
	for i, tier := range Tiers {
		entries, err := m.store.Count(ctx, string(tier)+":")
		if err != nil {
			return Stats{}, err
		}
		ts := TierStats{
			Hits:    m.stats.hits[i].Load(),
			Misses:  m.stats.misses[i].Load(),
			Entries: entries,
		}
		if total := ts.Hits + ts.Misses; total > 0 {
			ts.HitRate = float64(ts.Hits) / float64(total)
		}
		out.Tiers[tier] = ts
		out.Hits += ts.Hits
		out.Misses += ts.Misses
		out.Entries += entries
	}
	return out, nil
}
