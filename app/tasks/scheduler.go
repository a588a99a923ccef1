package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/amplifier/app/metrics"
)

const (
	DefaultTaskTimeout     = 10 * time.Minute
	defaultFallbackMinutes = 1
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Interval describes when a task runs again after it finishes. With both
// MinMinutes and MaxMinutes set the delay is drawn uniformly between them;
// otherwise FallbackMinutes is used, and one minute if that is unset too.
type Interval struct {
	MinMinutes      float64
	MaxMinutes      float64
	FallbackMinutes float64
	// Immediate runs the first invocation without waiting.
	Immediate bool
}

// Next returns the delay before the next invocation. rnd must return a
// value in [0, 1).
func (i Interval) Next(rnd func() float64) time.Duration {
	minutes := float64(defaultFallbackMinutes)
	switch {
	case i.MinMinutes > 0 && i.MaxMinutes > 0:
		minutes = i.MinMinutes
		if i.MaxMinutes > i.MinMinutes {
			minutes += rnd() * (i.MaxMinutes - i.MinMinutes)
		}
	case i.FallbackMinutes > 0:
		minutes = i.FallbackMinutes
	}
	return time.Duration(minutes * float64(time.Minute))
}

type HandleStats struct {
	ID        string    `json:"id"`
	Type      TaskType  `json:"type"`
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	NextRunAt time.Time `json:"next_run_at,omitempty"`
	Running   bool      `json:"running"`
	Cancelled bool      `json:"cancelled"`
}

// Handle controls one scheduled task.
type Handle struct {
	task     TaskInterface
	interval Interval
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	runs     atomic.Int64
	failures atomic.Int64
	running  atomic.Bool
	mu       sync.Mutex
	lastRun  time.Time
	nextRun  time.Time
}

// Cancel stops further invocations. It does not block and is safe to call
// from inside the task body.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the task will never run again.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) stats() HandleStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandleStats{
		ID:        h.task.GetID(),
		Type:      h.task.GetType(),
		Runs:      h.runs.Load(),
		Failures:  h.failures.Load(),
		LastRunAt: h.lastRun,
		NextRunAt: h.nextRun,
		Running:   h.running.Load(),
		Cancelled: h.ctx.Err() != nil,
	}
}

// Scheduler runs each task on its own timer. A task's next delay is armed
// only after its current invocation returns, so a task never overlaps
// itself and a slow task runs less often.
type Scheduler struct {
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	handles     []*Handle
	rand        func() float64
	taskTimeout time.Duration
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		rand:        rand.Float64,
		taskTimeout: DefaultTaskTimeout,
	}
}

// WithRand replaces the jitter source; used by tests.
func (s *Scheduler) WithRand(rnd func() float64) *Scheduler {
	s.rand = rnd
	return s
}

func (s *Scheduler) WithTaskTimeout(d time.Duration) *Scheduler {
	s.taskTimeout = d
	return s
}

func (s *Scheduler) Schedule(task TaskInterface, interval Interval) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{
		task:     task,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(h)

	slog.Debug("Task scheduled", "type", string(task.GetType()), "id", task.GetID(),
		"min_minutes", interval.MinMinutes, "max_minutes", interval.MaxMinutes, "fallback_minutes", interval.FallbackMinutes)

	return h
}

func (s *Scheduler) Cancel(h *Handle) {
	if h != nil {
		h.Cancel()
	}
}

// Stop cancels every handle and waits for in-flight invocations until ctx
// expires. Invocations still running after that are abandoned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) Stats() []HandleStats {
	s.mu.Lock()
	handles := make([]*Handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	stats := make([]HandleStats, 0, len(handles))
	for _, h := range handles {
		stats = append(stats, h.stats())
	}
	return stats
}

func (s *Scheduler) loop(h *Handle) {
	defer s.wg.Done()
	defer close(h.done)

	var delay time.Duration
	if !h.interval.Immediate {
		delay = h.interval.Next(s.rand)
	}

	for {
		h.mu.Lock()
		h.nextRun = time.Now().Add(delay)
		h.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.execute(h)

		if h.ctx.Err() != nil {
			return
		}
		delay = h.interval.Next(s.rand)
	}
}

func (s *Scheduler) execute(h *Handle) {
	task := h.task
	taskType := string(task.GetType())

	h.running.Store(true)
	defer h.running.Store(false)

	task.Start()
	h.mu.Lock()
	h.lastRun = time.Now()
	h.mu.Unlock()
	h.runs.Add(1)

	taskCtx, cancel := context.WithTimeout(h.ctx, s.taskTimeout)
	defer cancel()

	err := s.invoke(taskCtx, task)

	duration := task.GetDuration()
	metrics.TaskDuration.WithLabelValues(taskType).Observe(duration.Seconds())

	if err != nil {
		h.failures.Add(1)
		metrics.TaskRunCount.WithLabelValues(taskType, "error").Inc()
		slog.Error("Task execution failed", "type", taskType, "id", task.GetID(), "duration", duration, "error", err)
		return
	}
	metrics.TaskRunCount.WithLabelValues(taskType, "ok").Inc()
}

func (s *Scheduler) invoke(ctx context.Context, task TaskInterface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx)
}
