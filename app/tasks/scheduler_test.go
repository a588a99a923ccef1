package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fastInterval fires roughly every 6ms.
var fastInterval = Interval{FallbackMinutes: 0.0001, Immediate: true}

type funcTask struct {
	Task
	fn func(ctx context.Context) error
}

func newFuncTask(fn func(ctx context.Context) error) *funcTask {
	return &funcTask{Task: NewTask(TaskTypeCompact), fn: fn}
}

func (t *funcTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Condition not met before deadline")
}

func stop(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
}

func TestIntervalNext(t *testing.T) {
	tests := []struct {
		name     string
		interval Interval
		rnd      float64
		want     time.Duration
	}{
		{"jitter low", Interval{MinMinutes: 10, MaxMinutes: 20}, 0, 10 * time.Minute},
		{"jitter mid", Interval{MinMinutes: 10, MaxMinutes: 20}, 0.5, 15 * time.Minute},
		{"max below min", Interval{MinMinutes: 10, MaxMinutes: 5}, 0.9, 10 * time.Minute},
		{"only min uses fallback", Interval{MinMinutes: 10, FallbackMinutes: 30}, 0.5, 30 * time.Minute},
		{"only max uses fallback", Interval{MaxMinutes: 10, FallbackMinutes: 30}, 0.5, 30 * time.Minute},
		{"fallback", Interval{FallbackMinutes: 45}, 0.5, 45 * time.Minute},
		{"nothing configured", Interval{}, 0.5, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.interval.Next(func() float64 { return tt.rnd })
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIntervalNextBounds(t *testing.T) {
	interval := Interval{MinMinutes: 5, MaxMinutes: 7}
	s := NewScheduler()
	defer stop(t, s)

	for i := 0; i < 1000; i++ {
		d := interval.Next(s.rand)
		if d < 5*time.Minute || d > 7*time.Minute {
			t.Fatalf("Expected delay within [5m, 7m], got %v", d)
		}
	}
}

func TestSchedulerNeverOverlapsTask(t *testing.T) {
	s := NewScheduler()
	var inFlight, maxInFlight, runs atomic.Int32

	task := newFuncTask(func(ctx context.Context) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
		runs.Add(1)
		return nil
	})

	s.Schedule(task, fastInterval)
	waitFor(t, func() bool { return runs.Load() >= 3 })
	stop(t, s)

	if maxInFlight.Load() != 1 {
		t.Errorf("Expected at most 1 invocation in flight, got %d", maxInFlight.Load())
	}
}

func TestSchedulerReschedulesAfterErrorAndPanic(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32

	task := newFuncTask(func(ctx context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("boom")
		case 2:
			panic("unexpected")
		}
		return nil
	})

	h := s.Schedule(task, fastInterval)
	waitFor(t, func() bool { return runs.Load() >= 3 })
	stop(t, s)

	stats := h.stats()
	if stats.Failures != 2 {
		t.Errorf("Expected 2 failures, got %d", stats.Failures)
	}
	if stats.Runs < 3 {
		t.Errorf("Expected at least 3 runs, got %d", stats.Runs)
	}
}

func TestSchedulerCancelFromInsideBody(t *testing.T) {
	s := NewScheduler()
	defer stop(t, s)

	var runs atomic.Int32
	var handle atomic.Pointer[Handle]
	ready := make(chan struct{})

	task := newFuncTask(func(ctx context.Context) error {
		<-ready
		if runs.Add(1) == 2 {
			handle.Load().Cancel()
		}
		return nil
	})

	h := s.Schedule(task, fastInterval)
	handle.Store(h)
	close(ready)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Expected handle to finish after cancel")
	}

	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("Expected exactly 2 runs, got %d", got)
	}
	if !h.stats().Cancelled {
		t.Errorf("Expected handle to report cancelled")
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	s := NewScheduler()
	defer stop(t, s)

	var runs atomic.Int32
	h := s.Schedule(newFuncTask(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}), Interval{FallbackMinutes: 0.001})

	s.Cancel(h)
	<-h.Done()
	time.Sleep(100 * time.Millisecond)

	if runs.Load() != 0 {
		t.Errorf("Expected no runs after cancel, got %d", runs.Load())
	}
}

func TestSchedulerIndependentTasks(t *testing.T) {
	s := NewScheduler()
	var slowRuns, fastRuns atomic.Int32
	block := make(chan struct{})

	s.Schedule(newFuncTask(func(ctx context.Context) error {
		slowRuns.Add(1)
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}), fastInterval)
	s.Schedule(newFuncTask(func(ctx context.Context) error {
		fastRuns.Add(1)
		return nil
	}), fastInterval)

	waitFor(t, func() bool { return fastRuns.Load() >= 5 })
	close(block)
	stop(t, s)

	if slowRuns.Load() < 1 {
		t.Errorf("Expected slow task to have run")
	}
}

func TestSchedulerStopCancelsTaskContext(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	var cancelled atomic.Bool

	s.Schedule(newFuncTask(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}), Interval{FallbackMinutes: 60, Immediate: true})

	<-started
	stop(t, s)

	if !cancelled.Load() {
		t.Errorf("Expected in-flight task to observe cancellation")
	}
}

func TestSchedulerStopTimesOut(t *testing.T) {
	s := NewScheduler()
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	s.Schedule(newFuncTask(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}), Interval{FallbackMinutes: 60, Immediate: true})

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err == nil {
		t.Errorf("Expected stop to time out while a task ignores cancellation")
	}
}

func TestSchedulerStats(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	task := newFuncTask(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Schedule(task, fastInterval)
	waitFor(t, func() bool { return runs.Load() >= 1 })
	stop(t, s)

	stats := s.Stats()
	if len(stats) != 1 {
		t.Fatalf("Expected 1 handle, got %d", len(stats))
	}
	if stats[0].ID != task.GetID() || stats[0].Type != TaskTypeCompact {
		t.Errorf("Unexpected stats: %+v", stats[0])
	}
	if stats[0].LastRunAt.IsZero() {
		t.Errorf("Expected LastRunAt to be set")
	}
}
