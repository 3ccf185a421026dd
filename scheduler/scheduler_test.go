package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockTask implements the Runnable interface for testing
type mockTask struct {
	topic    string
	interval time.Duration
	lastErr  string

	mu       sync.Mutex
	runCalls int
	runFunc  func(ctx context.Context)
}

func (m *mockTask) Topic() string           { return m.topic }
func (m *mockTask) Interval() time.Duration { return m.interval }
func (m *mockTask) LastError() string       { return m.lastErr }

func (m *mockTask) Run(ctx context.Context) {
	m.mu.Lock()
	m.runCalls++
	m.mu.Unlock()
	if m.runFunc != nil {
		m.runFunc(ctx)
	}
}

func (m *mockTask) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCalls
}

// advance moves the scheduler's fake clock and fires one tick.
func advance(s *Scheduler, clock *time.Time, d time.Duration) {
	*clock = clock.Add(d)
	s.runDue(context.Background())
}

func newFakeClock(s *Scheduler) *time.Time {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	clock := &now
	s.now = func() time.Time { return *clock }
	return clock
}

func TestScheduler_RunsOnlyWhenDue(t *testing.T) {
	s := New(time.Second)
	clock := newFakeClock(s)

	task := &mockTask{topic: "t", interval: 5 * time.Second}
	s.Add(task)

	// t=1..4: not due.
	for i := 0; i < 4; i++ {
		advance(s, clock, time.Second)
	}
	if task.calls() != 0 {
		t.Fatalf("task ran before its interval elapsed: %d calls", task.calls())
	}

	// t=5: due exactly once.
	advance(s, clock, time.Second)
	if task.calls() != 1 {
		t.Fatalf("expected exactly 1 run at t=5, got %d", task.calls())
	}

	// t=6: not due again yet.
	advance(s, clock, time.Second)
	if task.calls() != 1 {
		t.Fatalf("task ran again too early: %d calls", task.calls())
	}
}

func TestScheduler_RegistrationOrderWithinTick(t *testing.T) {
	s := New(time.Second)
	clock := newFakeClock(s)

	var order []string
	mk := func(name string) *mockTask {
		m := &mockTask{topic: name, interval: time.Second}
		m.runFunc = func(ctx context.Context) { order = append(order, name) }
		return m
	}
	s.Add(mk("first"))
	s.Add(mk("second"))
	s.Add(mk("third"))

	advance(s, clock, time.Second)

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d runs, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("run order %v, want %v", order, want)
		}
	}
}

func TestScheduler_FailingTasksKeepBeingRetried(t *testing.T) {
	s := New(time.Second)
	clock := newFakeClock(s)

	const n = 4
	tasks := make([]*mockTask, n)
	for i := 0; i < n; i++ {
		m := &mockTask{topic: "t", interval: time.Second, lastErr: "always failing"}
		// A task whose run "fails" still returns normally: failures are
		// contained inside Run. Nothing here may panic or stall.
		tasks[i] = m
		s.Add(m)
	}

	for tick := 0; tick < n; tick++ {
		advance(s, clock, time.Second)
	}

	for i, m := range tasks {
		if m.calls() != n {
			t.Errorf("task %d: expected %d runs, got %d", i, n, m.calls())
		}
	}
}

func TestScheduler_SlowTaskDelaysButRunsLaterTasks(t *testing.T) {
	s := New(time.Second)
	clock := newFakeClock(s)

	slow := &mockTask{topic: "slow", interval: time.Second}
	slow.runFunc = func(ctx context.Context) {
		// Consumes 3s of wall time; the next task must still run this tick.
		*clock = clock.Add(3 * time.Second)
	}
	after := &mockTask{topic: "after", interval: time.Second}

	s.Add(slow)
	s.Add(after)

	advance(s, clock, time.Second)

	if slow.calls() != 1 || after.calls() != 1 {
		t.Fatalf("expected both tasks to run, got slow=%d after=%d", slow.calls(), after.calls())
	}

	// Drift tolerance: slow's next due time counts from completion, so one
	// second later it is due again (3s have passed since its last reset).
	advance(s, clock, time.Second)
	if slow.calls() != 2 {
		t.Errorf("expected slow to be due again, got %d", slow.calls())
	}
}

func TestScheduler_KeepAlive(t *testing.T) {
	s := New(time.Second)
	if s.KeepAlive() != 0 {
		t.Errorf("empty registry keep-alive = %v, want 0", s.KeepAlive())
	}

	s.Add(&mockTask{topic: "a", interval: 30 * time.Second})
	s.Add(&mockTask{topic: "b", interval: 5 * time.Second})
	s.Add(&mockTask{topic: "c", interval: 60 * time.Second})

	if got := s.KeepAlive(); got != 5*time.Second {
		t.Errorf("keep-alive = %v, want 5s", got)
	}
}

func TestScheduler_TasksSnapshot(t *testing.T) {
	s := New(time.Second)
	clock := newFakeClock(s)

	s.Add(&mockTask{topic: "a/b", interval: time.Second, lastErr: "boom"})

	advance(s, clock, time.Second)

	snap := s.Tasks()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	if snap[0].Topic != "a/b" || snap[0].Runs != 1 || snap[0].LastError != "boom" {
		t.Errorf("snapshot = %+v", snap[0])
	}
	if snap[0].Interval != "1s" {
		t.Errorf("interval = %q", snap[0].Interval)
	}
}

func TestScheduler_RunStopsOnContextCancellation(t *testing.T) {
	s := New(10 * time.Millisecond)
	task := &mockTask{topic: "t", interval: 10 * time.Millisecond}
	s.Add(task)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Run must return when the context is cancelled.
	s.Run(ctx)

	if task.calls() < 1 {
		t.Errorf("expected at least one run, got %d", task.calls())
	}
}
