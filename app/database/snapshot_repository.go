package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/sink"
)

var _ sink.Sink = (*SnapshotRepository)(nil)

// SnapshotRepository is an append-only log of discovery snapshots and
// engagement events for later analysis.
type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Snapshot(ctx context.Context, s models.DiscoverySnapshot) error {
	candidates, err := json.Marshal(s.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO discovery_snapshots (id, source_feed, started_at, scanned_count, candidates)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), s.SourceFeed, s.StartedAt.UnixNano(), s.ScannedCount, string(candidates))
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) Engagement(ctx context.Context, rec models.EngagementRecord) error {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO engagement_events (id, key, kind, created_at, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), rec.Key.String(), string(rec.Key.Kind), rec.CreatedAt.UnixNano(), metadata)
	if err != nil {
		return fmt.Errorf("failed to store engagement event: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit snapshots, newest first.
func (r *SnapshotRepository) RecentSnapshots(ctx context.Context, limit int) ([]models.DiscoverySnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_feed, started_at, scanned_count, candidates
		FROM discovery_snapshots
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.DiscoverySnapshot
	for rows.Next() {
		var (
			s          models.DiscoverySnapshot
			startedAt  int64
			candidates string
		)
		if err := rows.Scan(&s.SourceFeed, &startedAt, &s.ScannedCount, &candidates); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.StartedAt = time.Unix(0, startedAt).UTC()
		if err := json.Unmarshal([]byte(candidates), &s.Candidates); err != nil {
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *SnapshotRepository) EngagementCount(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM engagement_events WHERE created_at >= ?`, since.UnixNano()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count engagement events: %w", err)
	}
	return count, nil
}

// Prune drops log rows older than cutoff.
func (r *SnapshotRepository) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for _, query := range []string{
		`DELETE FROM discovery_snapshots WHERE started_at < ?`,
		`DELETE FROM engagement_events WHERE created_at < ?`,
	} {
		result, err := r.db.ExecContext(ctx, query, cutoff.UnixNano())
		if err != nil {
			return total, fmt.Errorf("failed to prune snapshot log: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += int(n)
	}
	return total, nil
}
