// Package task binds a probe, a topic, an interval and a publish policy
// together. A task is created once at startup and re-run by the scheduler
// for the lifetime of the process; every error during a run is contained
// inside the task so one failing task can never stall the others.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ecociel/beacon/domain"
	"github.com/ecociel/beacon/flatten"
	"github.com/ecociel/beacon/metrics"
	"github.com/ecociel/beacon/probe"
	"github.com/ecociel/beacon/sink"
)

// Publisher is the narrow broker capability a task needs. The qos hint is
// passed through opaquely; delivery semantics are the broker client's
// concern.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos int) error
}

// Spec is the resolved configuration of one task. Name is the topic suffix
// and the task's identity; TopicPrefix is final (defaulting happens in the
// config layer).
type Spec struct {
	Name        string
	TopicPrefix string
	Interval    string
	QoS         int
	JSON        bool
	Test        bool
}

type Task struct {
	topicPrefix string
	topicSuffix string
	interval    time.Duration
	qos         int
	jsonMode    bool

	probe probe.Func
	pub   Publisher
	sinks []sink.Sink
	m     metrics.AgentMetrics

	mu      sync.Mutex
	lastErr string
}

// New builds a task from its spec. The interval must parse to a positive
// duration or creation fails. When spec.Test is set, one evaluate+publish
// cycle runs immediately; its failure is logged as a warning and does not
// abort creation.
func New(ctx context.Context, spec Spec, fn probe.Func, pub Publisher, sinks []sink.Sink, m metrics.AgentMetrics) (*Task, error) {
	d, err := time.ParseDuration(spec.Interval)
	if err != nil {
		return nil, fmt.Errorf("task %s: parse interval %q: %w", spec.Name, spec.Interval, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("task %s: interval %q is not positive", spec.Name, spec.Interval)
	}
	if m == nil {
		m = metrics.Nop{}
	}

	t := &Task{
		topicPrefix: spec.TopicPrefix,
		topicSuffix: spec.Name,
		interval:    d,
		qos:         spec.QoS,
		jsonMode:    spec.JSON,
		probe:       fn,
		pub:         pub,
		sinks:       sinks,
		m:           m,
	}

	if spec.Test {
		if err := t.runOnce(ctx); err != nil {
			log.Warn().Str("topic", t.Topic()).Err(err).Msg("task test run failed")
		}
	}
	return t, nil
}

// Topic is the full publish topic, prefix joined to suffix.
func (t *Task) Topic() string {
	return flatten.JoinTopic(t.topicPrefix, t.topicSuffix)
}

func (t *Task) Interval() time.Duration { return t.interval }

// LastError reports the most recent contained run error, empty after a
// clean run.
func (t *Task) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Run performs one evaluate/flatten/publish/record cycle. It never returns
// an error: everything is logged with the task's topic identity and kept
// inside the task.
func (t *Task) Run(ctx context.Context) {
	t.m.TaskRan()
	err := t.runOnce(ctx)

	t.mu.Lock()
	if err != nil {
		t.lastErr = err.Error()
	} else {
		t.lastErr = ""
	}
	t.mu.Unlock()

	if err != nil {
		log.Warn().Str("topic", t.Topic()).Err(err).Msg("task run failed")
	}
}

// runOnce returns the first error of the cycle for bookkeeping. Publish and
// record are independent side effects: a publish failure never suppresses
// recording and vice versa.
func (t *Task) runOnce(ctx context.Context) error {
	res, err := t.probe(ctx)
	if err != nil {
		t.m.EvalFailed()
		return fmt.Errorf("eval: %w", err)
	}

	var firstErr error
	if t.jsonMode {
		firstErr = t.publishJSON(ctx, res)
	} else {
		firstErr = t.publishPrimitive(ctx, res)
	}

	if err := t.record(ctx, flatten.Normalize(res)); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// publishJSON serializes the normalized result once and publishes it under
// the task's own topic.
func (t *Task) publishJSON(ctx context.Context, res domain.Result) error {
	payload, err := flatten.MarshalFields(flatten.Normalize(res))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	log.Debug().Str("topic", t.Topic()).RawJSON("payload", payload).Msg("publish")

	start := time.Now()
	if err := t.pub.Publish(ctx, t.Topic(), payload, t.qos); err != nil {
		t.m.PublishFailed(1)
		return fmt.Errorf("publish: %w", err)
	}
	t.m.PublishLatency(time.Since(start))
	t.m.Published(1)
	return nil
}

// publishPrimitive flattens the result and publishes one value per scalar
// leaf. Unsupported leaves and failed publishes are logged and skipped;
// the remaining leaves still go out.
func (t *Task) publishPrimitive(ctx context.Context, res domain.Result) error {
	pubs, warns, err := flatten.Flatten(t.Topic(), res)
	if err != nil {
		return fmt.Errorf("flatten: %w", err)
	}
	for i := range warns {
		log.Warn().Str("topic", warns[i].Topic).Str("type", warns[i].TypeName).Msg("unsupported result type")
	}

	var firstErr error
	failed := 0
	for _, p := range pubs {
		log.Debug().Str("topic", p.Topic).Str("payload", p.Payload).Msg("publish")
		start := time.Now()
		if err := t.pub.Publish(ctx, p.Topic, []byte(p.Payload), t.qos); err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("publish %s: %w", p.Topic, err)
			}
			log.Warn().Str("topic", p.Topic).Err(err).Msg("publish failed")
			continue
		}
		t.m.PublishLatency(time.Since(start))
	}
	t.m.Published(len(pubs) - failed)
	if failed > 0 {
		t.m.PublishFailed(failed)
	}
	return firstErr
}

func (t *Task) record(ctx context.Context, fields []domain.Field) error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Record(ctx, t.Topic(), fields); err != nil {
			t.m.RecordFailed()
			if firstErr == nil {
				firstErr = fmt.Errorf("record: %w", err)
			}
			log.Warn().Str("topic", t.Topic()).Err(err).Msg("record write failed")
		}
	}
	return firstErr
}
