package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lysyi3m/amplifier/app/models"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(opts Options) (*Ledger, *MemStore, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemStore()
	return New(store, opts).WithClock(c.Now), store, c
}

func TestLedgerRecordIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, store, _ := newTestLedger(Options{})
	key := models.ThreadKey("post-1", models.ActionLike)

	acted, err := l.HasActed(ctx, key)
	assert.NoError(err)
	assert.False(acted)

	first, err := l.Record(ctx, key, map[string]string{"rationale": "first"})
	assert.NoError(err)
	assert.True(first)

	second, err := l.Record(ctx, key, map[string]string{"rationale": "second"})
	assert.NoError(err)
	assert.False(second)

	n, err := store.Count(ctx)
	assert.NoError(err)
	assert.Equal(1, n)

	rec, err := store.Get(ctx, key.String())
	assert.NoError(err)
	assert.Equal("first", rec.Metadata["rationale"])

	acted, err = l.HasActed(ctx, key)
	assert.NoError(err)
	assert.True(acted)
}

func TestLedgerKeysAreScopedByKind(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, _, _ := newTestLedger(Options{})

	_, err := l.Record(ctx, models.ThreadKey("post-1", models.ActionLike), nil)
	assert.NoError(err)

	acted, err := l.HasActed(ctx, models.ThreadKey("post-1", models.ActionReply))
	assert.NoError(err)
	assert.False(acted)

	_, err = l.Record(ctx, models.FollowKey("alice"), nil)
	assert.NoError(err)
	acted, err = l.HasActed(ctx, models.FollowKey("alice"))
	assert.NoError(err)
	assert.True(acted)
}

func TestLedgerLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, _, c := newTestLedger(Options{Retention: 48 * time.Hour})
	key := models.ThreadKey("post-1", models.ActionRepost)

	_, err := l.Record(ctx, key, nil)
	assert.NoError(err)

	c.Advance(47 * time.Hour)
	acted, err := l.HasActed(ctx, key)
	assert.NoError(err)
	assert.True(acted)

	c.Advance(2 * time.Hour)
	acted, err = l.HasActed(ctx, key)
	assert.NoError(err)
	assert.False(acted)

	// an expired slot can be claimed again
	written, err := l.Record(ctx, key, nil)
	assert.NoError(err)
	assert.True(written)
}

func TestLedgerMentionNamespace(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, _, _ := newTestLedger(Options{})

	processed, err := l.IsMentionProcessed(ctx, "n-1")
	assert.NoError(err)
	assert.False(processed)

	assert.NoError(l.MarkMentionProcessed(ctx, "n-1"))
	assert.NoError(l.MarkMentionProcessed(ctx, "n-1"))

	processed, err = l.IsMentionProcessed(ctx, "n-1")
	assert.NoError(err)
	assert.True(processed)

	acted, err := l.HasActed(ctx, models.ThreadKey("n-1", models.ActionReply))
	assert.NoError(err)
	assert.False(acted)
}

func TestLedgerReserve(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, _, _ := newTestLedger(Options{})
	key := models.ThreadKey("post-1", models.ActionReply)

	ok, err := l.Reserve(ctx, key)
	assert.NoError(err)
	assert.True(ok)

	ok, err = l.Reserve(ctx, key)
	assert.NoError(err)
	assert.False(ok, "second reservation must fail while the first is in flight")

	l.Release(key)
	ok, err = l.Reserve(ctx, key)
	assert.NoError(err)
	assert.True(ok)

	assert.NoError(l.Commit(ctx, key, nil))
	ok, err = l.Reserve(ctx, key)
	assert.NoError(err)
	assert.False(ok, "committed key cannot be reserved")
}

func TestLedgerReserveConcurrent(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(Options{})
	key := models.ThreadKey("post-1", models.ActionQuote)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Reserve(ctx, key)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestLedgerCompact(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	l, store, c := newTestLedger(Options{Retention: time.Hour, SoftCap: 3})

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := l.Record(ctx, models.ThreadKey(id, models.ActionLike), nil)
		assert.NoError(err)
		c.Advance(10 * time.Minute)
	}

	// over the cap, but nothing has expired yet
	deleted, err := l.Compact(ctx)
	assert.NoError(err)
	assert.Equal(0, deleted)

	c.Advance(35 * time.Minute)
	// a and b are now older than an hour
	deleted, err = l.Compact(ctx)
	assert.NoError(err)
	assert.Equal(1, deleted)

	rec, err := store.Get(ctx, models.ThreadKey("a", models.ActionLike).String())
	assert.NoError(err)
	assert.Nil(rec, "oldest record goes first")

	rec, err = store.Get(ctx, models.ThreadKey("b", models.ActionLike).String())
	assert.NoError(err)
	assert.NotNil(rec, "compaction stops at the soft cap")
}

type failingStore struct {
	*MemStore
}

func (s *failingStore) Get(ctx context.Context, key string) (*models.EngagementRecord, error) {
	return nil, errors.New("store offline")
}

func TestLedgerSurfacesStoreErrors(t *testing.T) {
	assert := assert.New(t)
	l := New(&failingStore{MemStore: NewMemStore()}, Options{})

	_, err := l.HasActed(context.Background(), models.ThreadKey("x", models.ActionLike))
	assert.Error(err)

	ok, err := l.Reserve(context.Background(), models.ThreadKey("x", models.ActionLike))
	assert.Error(err)
	assert.False(ok)
}
