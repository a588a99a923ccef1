package discovery

import (
	"sync"

	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/trend"
)

const DefaultHistorySize = 10

// History is a bounded ring of recent snapshots, oldest dropped first.
type History struct {
	size      int
	snapshots []models.DiscoverySnapshot
	mu        sync.RWMutex
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:      size,
		snapshots: make([]models.DiscoverySnapshot, 0, size),
	}
}

func (h *History) Add(s models.DiscoverySnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.snapshots) == h.size {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots = h.snapshots[:h.size-1]
	}
	h.snapshots = append(h.snapshots, s)
}

// All returns snapshots oldest first.
func (h *History) All() []models.DiscoverySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.DiscoverySnapshot, len(h.snapshots))
	copy(out, h.snapshots)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// Latest returns the most recent snapshot per source, newest source first.
// Snapshots without a source name are keyed by feed.
func (h *History) Latest() []models.DiscoverySnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	var latest []models.DiscoverySnapshot
	for i := len(h.snapshots) - 1; i >= 0; i-- {
		s := h.snapshots[i]
		key := snapshotKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, s)
	}
	return latest
}

func snapshotKey(s models.DiscoverySnapshot) string {
	if s.Source != "" {
		return s.Source
	}
	return s.SourceFeed
}

// LatestCandidates merges the latest snapshot of every source into one
// ranked list. Scores are scaled by each snapshot's top score so reach and
// velocity sources rank on the same 0..1 range. An item surfaced by several
// sources keeps its best scaled score.
func (h *History) LatestCandidates() []models.Candidate {
	best := make(map[string]models.Candidate)
	var order []string
	for _, s := range h.Latest() {
		top := 0.0
		for _, c := range s.Candidates {
			if c.Score > top {
				top = c.Score
			}
		}
		for _, c := range s.Candidates {
			if top > 0 {
				c.Score /= top
			} else {
				c.Score = 0
			}
			prev, ok := best[c.Item.ID]
			if !ok {
				order = append(order, c.Item.ID)
			}
			if !ok || c.Score > prev.Score {
				best[c.Item.ID] = c
			}
		}
	}

	merged := make([]models.Candidate, 0, len(order))
	for _, id := range order {
		merged = append(merged, best[id])
	}
	return trend.Rank(merged)
}
