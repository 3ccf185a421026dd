package metrics

import "time"

// AgentMetrics observes task execution. A no-op implementation is the
// default so the core never nil-checks.
type AgentMetrics interface {
	TaskRan()
	EvalFailed()
	Published(n int)
	PublishFailed(n int)
	RecordFailed()
	PublishLatency(d time.Duration)
}

type Nop struct{}

func (Nop) TaskRan()                     {}
func (Nop) EvalFailed()                  {}
func (Nop) Published(int)                {}
func (Nop) PublishFailed(int)            {}
func (Nop) RecordFailed()                {}
func (Nop) PublishLatency(time.Duration) {}
