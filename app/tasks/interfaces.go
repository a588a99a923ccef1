package tasks

import "context"

// TaskSchedulerInterface is what main needs from the scheduler.
//
//	scheduler := NewScheduler()
//	handle := scheduler.Schedule(NewCompactTask(l), Interval{FallbackMinutes: 30})
//	defer scheduler.Stop(ctx)
type TaskSchedulerInterface interface {
	Schedule(task TaskInterface, interval Interval) *Handle
	Cancel(h *Handle)
	Stop(ctx context.Context) error
	Stats() []HandleStats
}
