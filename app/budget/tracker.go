package budget

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/amplifier/app/models"
)

// Window is the length of one budget window.
const Window = time.Hour

type counter struct {
	count         int
	windowResetAt time.Time
}

// Usage is a point-in-time view of one counter.
type Usage struct {
	Kind          models.ActionKind `json:"kind"`
	Count         int               `json:"count"`
	Ceiling       int               `json:"ceiling"`
	WindowResetAt time.Time         `json:"window_reset_at"`
}

// Tracker caps actions of each kind per rolling hour. The whole window
// resets once it has elapsed instead of leaking continuously.
type Tracker struct {
	ceilings map[models.ActionKind]int
	counters map[models.ActionKind]*counter
	now      func() time.Time
	mu       sync.Mutex
}

func NewTracker(ceilings map[models.ActionKind]int) *Tracker {
	t := &Tracker{
		ceilings: make(map[models.ActionKind]int, len(ceilings)),
		counters: make(map[models.ActionKind]*counter, len(ceilings)),
		now:      time.Now,
	}
	for kind, ceiling := range ceilings {
		if ceiling < 0 {
			ceiling = 0
		}
		t.ceilings[kind] = ceiling
		t.counters[kind] = &counter{}
	}
	return t
}

// WithClock replaces the time source; used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	return t
}

// TryConsume grants one permit for kind if its window has room. Denial has
// no side effects. Untracked kinds are always denied.
func (t *Tracker) TryConsume(kind models.ActionKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[kind]
	if !ok {
		slog.Warn("Budget requested for untracked action kind", "kind", string(kind))
		return false
	}
	t.roll(c)

	if c.count >= t.ceilings[kind] {
		return false
	}
	c.count++
	return true
}

// AllExhausted is true only when every listed kind is at its ceiling.
// With no kinds it checks every tracked kind. Untracked kinds are ignored,
// and a list with no tracked kind at all counts as exhausted.
func (t *Tracker) AllExhausted(kinds ...models.ActionKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(kinds) == 0 {
		if len(t.counters) == 0 {
			return false
		}
		for kind := range t.counters {
			kinds = append(kinds, kind)
		}
	}
	for _, kind := range kinds {
		c, ok := t.counters[kind]
		if !ok {
			continue
		}
		t.roll(c)
		if c.count < t.ceilings[kind] {
			return false
		}
	}
	return true
}

// Remaining returns how many permits kind has left in its current window.
func (t *Tracker) Remaining(kind models.ActionKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[kind]
	if !ok {
		return 0
	}
	t.roll(c)
	return t.ceilings[kind] - c.count
}

func (t *Tracker) Snapshot() []Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	usage := make([]Usage, 0, len(t.counters))
	for _, kind := range []models.ActionKind{models.ActionLike, models.ActionRepost, models.ActionReply, models.ActionFollow, models.ActionPost} {
		c, ok := t.counters[kind]
		if !ok {
			continue
		}
		t.roll(c)
		usage = append(usage, Usage{
			Kind:          kind,
			Count:         c.count,
			Ceiling:       t.ceilings[kind],
			WindowResetAt: c.windowResetAt,
		})
	}
	return usage
}

// roll resets an elapsed window. Caller holds mu.
func (t *Tracker) roll(c *counter) {
	now := t.now()
	if now.After(c.windowResetAt) {
		c.count = 0
		c.windowResetAt = now.Add(Window)
	}
}
