package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lysyi3m/amplifier/app/models"
)

// Store is the durable side of the ledger. Keys are models.Key strings.
type Store interface {
	// Get returns nil when no record exists for key.
	Get(ctx context.Context, key string) (*models.EngagementRecord, error)

	// PutIfAbsent inserts rec unless a record created at or after
	// expiredBefore already holds the key. Returns true if rec was written.
	PutIfAbsent(ctx context.Context, rec models.EngagementRecord, expiredBefore time.Time) (bool, error)

	// Compact removes records created before cutoff, oldest first, but only
	// while the store holds more than softCap records.
	Compact(ctx context.Context, cutoff time.Time, softCap int) (int, error)

	Count(ctx context.Context) (int, error)
}

var _ Store = (*MemStore)(nil)

type MemStore struct {
	records map[string]models.EngagementRecord
	mu      sync.RWMutex
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]models.EngagementRecord)}
}

func (s *MemStore) Get(ctx context.Context, key string) (*models.EngagementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemStore) PutIfAbsent(ctx context.Context, rec models.EngagementRecord, expiredBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key.String()
	if existing, ok := s.records[key]; ok && !existing.CreatedAt.Before(expiredBefore) {
		return false, nil
	}
	s.records[key] = rec
	return true, nil
}

func (s *MemStore) Compact(ctx context.Context, cutoff time.Time, softCap int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.records) - softCap
	if excess <= 0 {
		return 0, nil
	}

	expired := make([]models.EngagementRecord, 0, excess)
	for _, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, rec)
		}
	}
	slices.SortFunc(expired, func(a, b models.EngagementRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	deleted := 0
	for _, rec := range expired {
		if deleted >= excess {
			break
		}
		delete(s.records, rec.Key.String())
		deleted++
	}
	return deleted, nil
}

func (s *MemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
