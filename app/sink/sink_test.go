package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/lysyi3m/amplifier/app/models"
)

type recordingSink struct {
	snapshots   int
	engagements int
	err         error
}

func (r *recordingSink) Snapshot(context.Context, models.DiscoverySnapshot) error {
	r.snapshots++
	return r.err
}

func (r *recordingSink) Engagement(context.Context, models.EngagementRecord) error {
	r.engagements++
	return r.err
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	m := Multi{failing, ok}

	err := m.Snapshot(context.Background(), models.DiscoverySnapshot{})
	if err == nil {
		t.Error("Expected first error to be returned")
	}
	if ok.snapshots != 1 {
		t.Errorf("Expected second sink to receive the snapshot, got %d", ok.snapshots)
	}

	m.Engagement(context.Background(), models.EngagementRecord{})
	if ok.engagements != 1 || failing.engagements != 1 {
		t.Errorf("Expected both sinks to receive the engagement, got %d and %d", failing.engagements, ok.engagements)
	}
}

func TestDeliver_SwallowsErrors(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}

	DeliverSnapshot(context.Background(), failing, models.DiscoverySnapshot{SourceFeed: "hot"})
	DeliverEngagement(context.Background(), failing, models.EngagementRecord{})
	DeliverSnapshot(context.Background(), nil, models.DiscoverySnapshot{})

	if failing.snapshots != 1 || failing.engagements != 1 {
		t.Errorf("Expected one delivery each, got %d and %d", failing.snapshots, failing.engagements)
	}
}
