// Package scheduler drives registered tasks at their configured cadence
// from a single tick loop. One coarse ticker covers all tasks instead of a
// timer per task; within a tick, due tasks run synchronously in
// registration order. A task's run duration delays later tasks in the same
// tick but, because every run contains its own failures, never blocks them
// permanently. A hung probe has no timeout; that is a known limitation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTick is the scheduling granularity.
const DefaultTick = time.Second

// Runnable is what the scheduler knows about a task.
type Runnable interface {
	Topic() string
	Interval() time.Duration
	Run(ctx context.Context)
	LastError() string
}

// Status is a snapshot of one registry entry, served by the status API.
type Status struct {
	Topic     string    `json:"topic"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	Runs      uint64    `json:"runs"`
	LastError string    `json:"last_error,omitempty"`
}

type entry struct {
	task     Runnable
	interval time.Duration
	last     time.Time
	runs     uint64
}

// Scheduler owns its task registry; there is no process-wide schedule.
type Scheduler struct {
	tick time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries []*entry
}

func New(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{tick: tick, now: time.Now}
}

// Add registers a task. Its first run happens one full interval after
// registration; a test run at creation time is the task's own business.
func (s *Scheduler) Add(t Runnable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{task: t, interval: t.Interval(), last: s.now()})
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// KeepAlive is the minimum interval across registered tasks, zero when the
// registry is empty. The broker connection's idle timeout is derived from
// it so the busiest task's cadence keeps the connection warm.
func (s *Scheduler) KeepAlive() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var min time.Duration
	for _, e := range s.entries {
		if min == 0 || e.interval < min {
			min = e.interval
		}
	}
	return min
}

// Run drives the tick loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Int("tasks", s.Len()).Dur("tick", s.tick).Msg("scheduler started")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue runs every task whose interval has elapsed, in registration order.
// The last-run timestamp resets to completion time, not to the scheduled
// instant, so a slow tick delays later runs instead of replaying them
// back to back.
func (s *Scheduler) runDue(ctx context.Context) {
	s.mu.Lock()
	entries := make([]*entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	for _, e := range entries {
		s.mu.Lock()
		due := s.now().Sub(e.last) >= e.interval
		s.mu.Unlock()
		if !due {
			continue
		}

		e.task.Run(ctx)

		s.mu.Lock()
		e.last = s.now()
		e.runs++
		s.mu.Unlock()
	}
}

// Tasks snapshots the registry for the status API.
func (s *Scheduler) Tasks() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Status{
			Topic:     e.task.Topic(),
			Interval:  e.interval.String(),
			LastRun:   e.last,
			Runs:      e.runs,
			LastError: e.task.LastError(),
		})
	}
	return out
}
