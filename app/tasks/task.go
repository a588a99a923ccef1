package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeDiscover  TaskType = "discover"
	TaskTypeTrendScan TaskType = "trend_scan"
	TaskTypeEngage    TaskType = "engage"
	TaskTypeMentions  TaskType = "mentions"
	TaskTypePost      TaskType = "post"
	TaskTypeCompact   TaskType = "compact"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	Start()
	GetDuration() time.Duration
}

// Task is embedded by every periodic task. A task value is reused across
// invocations; Start marks the beginning of the current one.
type Task struct {
	ID        string
	Type      TaskType
	startedAt time.Time
	mu        sync.Mutex
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = time.Now()
}

func (t *Task) GetDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		return 0
	}
	return time.Since(t.startedAt)
}

func NewTask(taskType TaskType) Task {
	return Task{
		ID:   uuid.NewString(),
		Type: taskType,
	}
}
