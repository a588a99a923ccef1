package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/amplifier/app/discovery"
	"github.com/lysyi3m/amplifier/app/sources"
)

// DiscoverTask scans every enabled discovery source.
type DiscoverTask struct {
	Task
	sourceTask  string
	sourceCache *sources.SourceCache
	scanner     *discovery.Scanner
}

func NewDiscoverTask(sourceCache *sources.SourceCache, scanner *discovery.Scanner) *DiscoverTask {
	return &DiscoverTask{
		Task:        NewTask(TaskTypeDiscover),
		sourceTask:  sources.TaskDiscovery,
		sourceCache: sourceCache,
		scanner:     scanner,
	}
}

// TrendScanTask scans every enabled trend source, ranking by velocity.
type TrendScanTask struct {
	DiscoverTask
}

func NewTrendScanTask(sourceCache *sources.SourceCache, scanner *discovery.Scanner) *TrendScanTask {
	return &TrendScanTask{
		DiscoverTask: DiscoverTask{
			Task:        NewTask(TaskTypeTrendScan),
			sourceTask:  sources.TaskTrend,
			sourceCache: sourceCache,
			scanner:     scanner,
		},
	}
}

// Execute fails only when every source failed.
func (t *DiscoverTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	configs := t.sourceCache.GetEnabledConfigs(t.sourceTask)
	if len(configs) == 0 {
		slog.Debug("No enabled sources, skipping", "type", string(t.Type), "task", t.sourceTask)
		return nil
	}

	failed := 0
	candidates := 0
	var lastErr error
	for _, config := range configs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		snapshot, err := t.scanner.Scan(ctx, config)
		if err != nil {
			slog.Warn("Source scan failed", "type", string(t.Type), "source", config.Name, "error", err)
			failed++
			lastErr = err
			continue
		}
		candidates += len(snapshot.Candidates)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"sources", len(configs),
		"failed", failed,
		"candidates", candidates)

	if failed == len(configs) {
		return fmt.Errorf("all %d sources failed: %w", failed, lastErr)
	}
	return nil
}
