package sink

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/amplifier/app/models"
)

// Sink receives best-effort analytics events. Callers never act on the
// returned error beyond logging it.
type Sink interface {
	Snapshot(ctx context.Context, snapshot models.DiscoverySnapshot) error
	Engagement(ctx context.Context, record models.EngagementRecord) error
}

type Nop struct{}

func (Nop) Snapshot(context.Context, models.DiscoverySnapshot) error { return nil }
func (Nop) Engagement(context.Context, models.EngagementRecord) error { return nil }

// Log writes events to slog at debug level.
type Log struct{}

func (Log) Snapshot(ctx context.Context, s models.DiscoverySnapshot) error {
	slog.Debug("Discovery snapshot", "source", s.SourceFeed, "scanned", s.ScannedCount, "candidates", len(s.Candidates))
	return nil
}

func (Log) Engagement(ctx context.Context, r models.EngagementRecord) error {
	slog.Debug("Engagement recorded", "key", r.Key.String())
	return nil
}

// Multi fans events out to every sink and keeps going past failures.
type Multi []Sink

func (m Multi) Snapshot(ctx context.Context, s models.DiscoverySnapshot) error {
	var first error
	for _, sk := range m {
		if err := sk.Snapshot(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Engagement(ctx context.Context, r models.EngagementRecord) error {
	var first error
	for _, sk := range m {
		if err := sk.Engagement(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DeliverSnapshot sends to s and swallows failures after logging them.
func DeliverSnapshot(ctx context.Context, s Sink, snapshot models.DiscoverySnapshot) {
	if s == nil {
		return
	}
	if err := s.Snapshot(ctx, snapshot); err != nil {
		slog.Warn("Failed to deliver snapshot", "source", snapshot.SourceFeed, "error", err)
	}
}

func DeliverEngagement(ctx context.Context, s Sink, record models.EngagementRecord) {
	if s == nil {
		return
	}
	if err := s.Engagement(ctx, record); err != nil {
		slog.Warn("Failed to deliver engagement event", "key", record.Key.String(), "error", err)
	}
}
