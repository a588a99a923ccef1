package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/models"
)

var _ ledger.Store = (*LedgerRepository)(nil)

// LedgerRepository persists engagement records so dedup survives restarts.
type LedgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Get(ctx context.Context, key string) (*models.EngagementRecord, error) {
	var (
		target, kind, metadata string
		createdAt              int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT target, kind, created_at, metadata
		FROM engagement_records
		WHERE key = ?
	`, key).Scan(&target, &kind, &createdAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement record: %w", err)
	}

	rec := &models.EngagementRecord{
		Key:       models.Key{Target: target, Kind: models.ActionKind(kind)},
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode record metadata: %w", err)
		}
	}
	return rec, nil
}

// PutIfAbsent inserts rec unless a record for the same key exists that was
// created at or after expiredBefore.
func (r *LedgerRepository) PutIfAbsent(ctx context.Context, rec models.EngagementRecord, expiredBefore time.Time) (bool, error) {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO engagement_records (key, target, kind, created_at, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			target = excluded.target,
			kind = excluded.kind,
			created_at = excluded.created_at,
			metadata = excluded.metadata
		WHERE engagement_records.created_at < ?
	`, rec.Key.String(), rec.Key.Target, string(rec.Key.Kind), rec.CreatedAt.UnixNano(), metadata, expiredBefore.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to insert engagement record: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Compact deletes records created before cutoff, oldest first, until the
// table is back at softCap.
func (r *LedgerRepository) Compact(ctx context.Context, cutoff time.Time, softCap int) (int, error) {
	count, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= softCap {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM engagement_records
		WHERE key IN (
			SELECT key FROM engagement_records
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff.UnixNano(), count-softCap)
	if err != nil {
		return 0, fmt.Errorf("failed to compact engagement records: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *LedgerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM engagement_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count engagement records: %w", err)
	}
	return count, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}
