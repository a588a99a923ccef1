package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/amplifier/app/ledger"
)

// Pruner drops old rows from an append-only log.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

type CompactTask struct {
	Task
	ledger       *ledger.Ledger
	pruner       Pruner
	logRetention time.Duration
	now          func() time.Time
}

func NewCompactTask(l *ledger.Ledger) *CompactTask {
	return &CompactTask{
		Task:   NewTask(TaskTypeCompact),
		ledger: l,
		now:    time.Now,
	}
}

// WithPruner also trims the snapshot log to entries newer than retention.
func (t *CompactTask) WithPruner(p Pruner, retention time.Duration) *CompactTask {
	t.pruner = p
	t.logRetention = retention
	return t
}

func (t *CompactTask) Execute(ctx context.Context) error {
	deleted, err := t.ledger.Compact(ctx)
	if err != nil {
		return fmt.Errorf("failed to compact ledger: %w", err)
	}

	remaining, err := t.ledger.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count ledger records: %w", err)
	}

	pruned := 0
	if t.pruner != nil && t.logRetention > 0 {
		pruned, err = t.pruner.Prune(ctx, t.now().Add(-t.logRetention))
		if err != nil {
			slog.Error("Failed to prune snapshot log", "error", err)
		}
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"deleted", deleted,
		"remaining", remaining,
		"pruned", pruned)

	return nil
}
