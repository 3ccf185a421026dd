package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PromMetrics struct {
	runs           prometheus.Counter
	evalFailed     prometheus.Counter
	published      prometheus.Counter
	publishFailed  prometheus.Counter
	recordFailed   prometheus.Counter
	publishLatency prometheus.Histogram
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {

	m := &PromMetrics{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_task_runs_total",
			Help: "Number of task runs",
		}),
		evalFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_task_eval_failures_total",
			Help: "Number of probe evaluations that failed",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_publishes_total",
			Help: "Number of values published to the broker",
		}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_publish_failures_total",
			Help: "Number of broker publishes that failed",
		}),
		recordFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_record_failures_total",
			Help: "Number of record sink writes that failed",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_publish_latency_seconds",
			Help:    "Latency of broker publishes",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.runs, m.evalFailed, m.published, m.publishFailed, m.recordFailed, m.publishLatency)
	return m
}

func (m *PromMetrics) TaskRan() {
	m.runs.Inc()
}
func (m *PromMetrics) EvalFailed() {
	m.evalFailed.Inc()
}
func (m *PromMetrics) Published(n int) {
	m.published.Add(float64(n))
}
func (m *PromMetrics) PublishFailed(n int) {
	m.publishFailed.Add(float64(n))
}
func (m *PromMetrics) RecordFailed() {
	m.recordFailed.Inc()
}
func (m *PromMetrics) PublishLatency(d time.Duration) {
	m.publishLatency.Observe(d.Seconds())
}
