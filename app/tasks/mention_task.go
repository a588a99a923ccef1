package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/amplifier/app/mentions"
)

type MentionTask struct {
	Task
	reconciler *mentions.Reconciler
}

func NewMentionTask(reconciler *mentions.Reconciler) *MentionTask {
	return &MentionTask{
		Task:       NewTask(TaskTypeMentions),
		reconciler: reconciler,
	}
}

func (t *MentionTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconcile mentions: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"new", result.New,
		"replied", result.Outcomes[mentions.OutcomeReplied])

	return nil
}
