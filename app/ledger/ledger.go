package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lysyi3m/amplifier/app/models"
)

const (
	DefaultRetention = 48 * time.Hour
	DefaultSoftCap   = 1000
)

// kindMention keeps processed notifications in their own key namespace.
const kindMention models.ActionKind = "mention"

type Options struct {
	Retention time.Duration
	SoftCap   int
}

// Ledger remembers which irreversible actions were taken on which targets.
// Writes are insert-only while a record is inside the retention window.
// Reads go through an in-memory cache before the store.
type Ledger struct {
	store     Store
	cache     *expirable.LRU[string, models.EngagementRecord]
	retention time.Duration
	softCap   int
	reserved  map[string]struct{}
	now       func() time.Time
	mu        sync.Mutex
}

func New(store Store, opts Options) *Ledger {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.SoftCap <= 0 {
		opts.SoftCap = DefaultSoftCap
	}
	return &Ledger{
		store:     store,
		cache:     expirable.NewLRU[string, models.EngagementRecord](opts.SoftCap, nil, opts.Retention),
		retention: opts.Retention,
		softCap:   opts.SoftCap,
		reserved:  make(map[string]struct{}),
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// HasActed reports whether a non-expired record exists for key.
func (l *Ledger) HasActed(ctx context.Context, key models.Key) (bool, error) {
	return l.exists(ctx, key.String())
}

// Record stores key if it is not already held. A second call for the same
// key is a no-op. Returns true if this call wrote the record.
func (l *Ledger) Record(ctx context.Context, key models.Key, metadata map[string]string) (bool, error) {
	rec := models.EngagementRecord{
		Key:       key,
		CreatedAt: l.now().UTC(),
		Metadata:  metadata,
	}
	return l.insert(ctx, rec)
}

// Reserve claims key for an in-flight action. It fails if the key is
// already recorded or claimed by another caller in this process. A
// successful Reserve must be followed by Commit or Release.
func (l *Ledger) Reserve(ctx context.Context, key models.Key) (bool, error) {
	k := key.String()

	l.mu.Lock()
	if _, taken := l.reserved[k]; taken {
		l.mu.Unlock()
		return false, nil
	}
	l.reserved[k] = struct{}{}
	l.mu.Unlock()

	acted, err := l.exists(ctx, k)
	if err != nil || acted {
		l.Release(key)
		return false, err
	}
	return true, nil
}

// Release drops a reservation without recording anything.
func (l *Ledger) Release(key models.Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, key.String())
}

// Commit records a reserved key and drops the reservation.
func (l *Ledger) Commit(ctx context.Context, key models.Key, metadata map[string]string) error {
	defer l.Release(key)
	if _, err := l.Record(ctx, key, metadata); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) IsMentionProcessed(ctx context.Context, notificationID string) (bool, error) {
	return l.exists(ctx, mentionKey(notificationID).String())
}

func (l *Ledger) MarkMentionProcessed(ctx context.Context, notificationID string) error {
	_, err := l.insert(ctx, models.EngagementRecord{
		Key:       mentionKey(notificationID),
		CreatedAt: l.now().UTC(),
	})
	return err
}

// Compact evicts expired records, oldest first, once the store holds more
// than the soft cap. Records inside the retention window are never evicted.
func (l *Ledger) Compact(ctx context.Context) (int, error) {
	cutoff := l.now().UTC().Add(-l.retention)
	deleted, err := l.store.Compact(ctx, cutoff, l.softCap)
	if err != nil {
		return 0, fmt.Errorf("failed to compact ledger: %w", err)
	}
	if deleted > 0 {
		slog.Debug("Ledger compacted", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (l *Ledger) Count(ctx context.Context) (int, error) {
	return l.store.Count(ctx)
}

func (l *Ledger) exists(ctx context.Context, key string) (bool, error) {
	if rec, ok := l.cache.Peek(key); ok {
		if l.live(rec) {
			return true, nil
		}
		l.cache.Remove(key)
	}

	rec, err := l.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read ledger key %s: %w", key, err)
	}
	if rec == nil || !l.live(*rec) {
		return false, nil
	}
	l.cache.Add(key, *rec)
	return true, nil
}

func (l *Ledger) insert(ctx context.Context, rec models.EngagementRecord) (bool, error) {
	key := rec.Key.String()
	if cached, ok := l.cache.Peek(key); ok && l.live(cached) {
		return false, nil
	}

	written, err := l.store.PutIfAbsent(ctx, rec, l.cutoff())
	if err != nil {
		return false, fmt.Errorf("failed to write ledger key %s: %w", key, err)
	}
	if written {
		l.cache.Add(key, rec)
	}
	return written, nil
}

func (l *Ledger) live(rec models.EngagementRecord) bool {
	return !rec.CreatedAt.Before(l.cutoff())
}

func (l *Ledger) cutoff() time.Time {
	return l.now().UTC().Add(-l.retention)
}

func mentionKey(notificationID string) models.Key {
	return models.Key{Target: notificationID, Kind: kindMention}
}
