package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Runner executes one full refresh cycle.
type Runner interface {
	RunCycle(ctx context.Context, cycleID string) error
}

// ActivityReader reports whether anyone is watching and how stale the
// cached data is.
type ActivityReader interface {
	HasActiveViewers(ctx context.Context) (bool, error)
	Staleness(ctx context.Context) (time.Duration, error)
}

// Decide is the scheduler's tick policy. Manual triggers bypass it
// entirely; this only governs timer-driven refreshes.
//
// With nobody watching, the cache is allowed to age up to the stale
// threshold before a refresh is spent on it. With viewers present, data
// older than one interval is due.
func Decide(hasViewers bool, staleness, interval, staleThreshold time.Duration) (run bool, reason string) {
	if !hasViewers && staleness < staleThreshold {
		return false, "idle"
	}
	if staleness >= interval {
		return true, "due"
	}
	return false, "fresh"
}

// Scheduler drives the refresh loop. Cycles are single-flight: a manual
// trigger that lands while a cycle is running coalesces onto the running
// task instead of starting another.
type Scheduler struct {
	runner         Runner
	activity       ActivityReader
	interval       time.Duration
	staleThreshold time.Duration

	registry *taskRegistry

	mu          sync.Mutex
	runningTask string

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(runner Runner, activity ActivityReader, interval, staleThreshold time.Duration) *Scheduler {
	return &Scheduler{
		runner:         runner,
		activity:       activity,
		interval:       interval,
		staleThreshold: staleThreshold,
		registry:       newTaskRegistry(),
		stopChan:       make(chan struct{}),
	}
}

// Start runs the tick loop until Stop or context cancellation. The first
// cycle fires immediately so a fresh deploy serves data without waiting
// out an interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.Trigger(ctx, "startup")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the tick loop and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	hasViewers, err := s.activity.HasActiveViewers(ctx)
	if err != nil {
		fmt.Printf("⚠ scheduler: viewer check failed, refreshing anyway: %v\n", err)
		hasViewers = true
	}

	staleness, err := s.activity.Staleness(ctx)
	if err != nil {
		fmt.Printf("⚠ scheduler: staleness check failed, refreshing anyway: %v\n", err)
		staleness = s.staleThreshold
	}

	run, reason := Decide(hasViewers, staleness, s.interval, s.staleThreshold)
	if !run {
		fmt.Printf("[scheduler] tick skipped (%s, staleness %s)\n", reason, staleness.Round(time.Second))
		return
	}

	s.Trigger(ctx, "scheduler")
}

// Trigger starts a refresh cycle and returns its task id. If a cycle is
// already running, the running task's id comes back instead of a new one.
func (s *Scheduler) Trigger(ctx context.Context, requestedBy string) string {
	s.mu.Lock()
	if s.runningTask != "" {
		id := s.runningTask
		s.mu.Unlock()
		return id
	}

	task := s.registry.create(requestedBy)
	s.runningTask = task.ID
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTask(ctx, task.ID)
	}()

	return task.ID
}

// Status looks up a previously triggered task.
func (s *Scheduler) Status(id string) (Task, bool) {
	return s.registry.get(id)
}

func (s *Scheduler) runTask(ctx context.Context, taskID string) {
	defer func() {
		s.mu.Lock()
		s.runningTask = ""
		s.mu.Unlock()
	}()

	s.registry.setRunning(taskID)

	started := time.Now()
	err := s.runner.RunCycle(ctx, taskID)
	s.registry.finish(taskID, err)

	if err != nil {
		fmt.Printf("✗ refresh cycle %s failed after %s: %v\n", taskID, time.Since(started).Round(time.Millisecond), err)
		return
	}
	fmt.Printf("✓ refresh cycle %s completed in %s\n", taskID, time.Since(started).Round(time.Millisecond))
}
