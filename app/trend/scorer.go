package trend

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/amplifier/app/models"
)

// MinAgeHours clamps the age of just-created items so velocity stays finite.
const MinAgeHours = 0.1

const (
	DefaultMinEngagement = 3
	DefaultTimeWindow    = 24 * time.Hour
)

type Weights struct {
	Like     float64 `yaml:"like"`
	Repost   float64 `yaml:"repost"`
	Reply    float64 `yaml:"reply"`
	Bookmark float64 `yaml:"bookmark"`
}

func DefaultWeights() Weights {
	return Weights{Like: 1, Repost: 2, Reply: 1.5, Bookmark: 1}
}

// Weighted returns the weighted engagement total for c.
func (w Weights) Weighted(c models.Counters) float64 {
	return w.Like*float64(c.Likes) +
		w.Repost*float64(c.Reposts) +
		w.Reply*float64(c.Replies) +
		w.Bookmark*float64(c.Bookmarks)
}

// Score computes velocity × √(weighted engagement), where velocity is the
// weighted engagement per hour of age. The result is never NaN or Inf for
// non-negative counters.
func Score(item models.ContentItem, w Weights, now time.Time) float64 {
	weighted := w.Weighted(item.Counters)
	if weighted <= 0 {
		return 0
	}
	ageHours := math.Max(item.Age(now).Hours(), MinAgeHours)
	velocity := weighted / ageHours
	return velocity * math.Sqrt(weighted)
}

// ReachScore is the discovery composite: engagement folded with the
// author's reach, (likes + 2×reposts + 1.5×replies) × log10(followers + 10).
func ReachScore(item models.ContentItem) float64 {
	c := item.Counters
	engagement := float64(c.Likes) + 2*float64(c.Reposts) + 1.5*float64(c.Replies)
	followers := math.Max(float64(item.AuthorFollowers), 0)
	return engagement * math.Log10(followers+10)
}

type Filter struct {
	// MinEngagement is the raw (unweighted) engagement floor.
	MinEngagement int
	// TimeWindow drops items older than this.
	TimeWindow time.Duration
}

func DefaultFilter() Filter {
	return Filter{MinEngagement: DefaultMinEngagement, TimeWindow: DefaultTimeWindow}
}

// Eligible reports whether item may be scored at all, and why not.
func (f Filter) Eligible(item models.ContentItem, now time.Time) (bool, string) {
	if total := item.Counters.Total(); total < f.MinEngagement {
		return false, "below engagement floor"
	}
	if f.TimeWindow > 0 && item.Age(now) > f.TimeWindow {
		return false, "outside time window"
	}
	return true, ""
}

// Rank orders candidates by descending score. Equal scores put the fresher
// item first; identical timestamps fall back to ID so output is
// deterministic. Ranks are assigned from 1.
func Rank(candidates []models.Candidate) []models.Candidate {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b models.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.Item.CreatedAt.Compare(a.Item.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Item.ID, b.Item.ID)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Top returns at most k ranked candidates.
func Top(candidates []models.Candidate, k int) []models.Candidate {
	ranked := Rank(candidates)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
