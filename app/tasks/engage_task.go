package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/amplifier/app/discovery"
	"github.com/lysyi3m/amplifier/app/engage"
)

// EngageTask runs one engagement pass over the latest snapshot of every
// source.
type EngageTask struct {
	Task
	history *discovery.History
	engine  *engage.Engine
}

func NewEngageTask(history *discovery.History, engine *engage.Engine) *EngageTask {
	return &EngageTask{
		Task:    NewTask(TaskTypeEngage),
		history: history,
		engine:  engine,
	}
}

func (t *EngageTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	candidates := t.history.LatestCandidates()
	if len(candidates) == 0 {
		slog.Debug("No candidates yet, skipping engagement pass")
		return nil
	}

	result := t.engine.RunPass(ctx, candidates)

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"candidates", len(candidates),
		"evaluated", result.Evaluated,
		"executed", result.Outcomes[engage.OutcomeExecuted],
		"stopped", result.Stopped)

	return nil
}
