package api

import (
	"context"

	"github.com/lysyi3m/amplifier/app/budget"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/sources"
	"github.com/lysyi3m/amplifier/app/tasks"
)

type BudgetInterface interface {
	Snapshot() []budget.Usage
}

type LedgerInterface interface {
	Count(ctx context.Context) (int, error)
}

type HistoryInterface interface {
	All() []models.DiscoverySnapshot
	Len() int
}

// SnapshotLog serves persisted snapshots. When nil, the in-memory history
// answers instead.
type SnapshotLog interface {
	RecentSnapshots(ctx context.Context, limit int) ([]models.DiscoverySnapshot, error)
}

type SourceCacheInterface interface {
	GetConfigs() []*sources.Config
	GetConfig(name string) (*sources.Config, error)
	LoadConfig(name string) (*sources.Config, error)
	GetConfigCount() int
}

var _ SourceCacheInterface = (*sources.SourceCache)(nil)

type Handler struct {
	budget      BudgetInterface
	ledger      LedgerInterface
	history     HistoryInterface
	snapshots   SnapshotLog
	sourceCache SourceCacheInterface
	scheduler   tasks.TaskSchedulerInterface
	version     string
}
