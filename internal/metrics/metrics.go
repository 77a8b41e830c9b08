// Package metrics exposes Prometheus instrumentation for planning,
// execution, and review.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one process. All observation methods
// are nil-safe so instrumentation stays optional in library use.
type Metrics struct {
	plansTotal   *prometheus.CounterVec
	planDuration prometheus.Histogram

	graphRunsTotal *prometheus.CounterVec
	graphDuration  prometheus.Histogram

	tasksTotal       *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	taskRetriesTotal prometheus.Counter

	reviewChecksTotal *prometheus.CounterVec
	reviewDuration    prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		plansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "plans_total",
			Help:      "Plans built, labeled by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		planDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "plan_duration_seconds",
			Help:      "Time spent building a plan.",
			Buckets:   prometheus.DefBuckets,
		}),
		graphRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "graph_runs_total",
			Help:      "Graph executions, labeled by terminal graph status.",
		}, []string{"status"}),
		graphDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "graph_duration_seconds",
			Help:      "Wall-clock duration of a graph execution.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "tasks_total",
			Help:      "Tasks reaching a terminal status, labeled by status and tool.",
		}, []string{"status", "tool"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock duration of a task across all attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tool"}),
		taskRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "task_retries_total",
			Help:      "Retry attempts across all tasks.",
		}),
		reviewChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "review_checks_total",
			Help:      "Review checks executed, labeled by check type and status.",
		}, []string{"type", "status"}),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "review_duration_seconds",
			Help:      "Time spent reviewing one task result.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.plansTotal, m.planDuration,
		m.graphRunsTotal, m.graphDuration,
		m.tasksTotal, m.taskDuration, m.taskRetriesTotal,
		m.reviewChecksTotal, m.reviewDuration,
	)
	return m
}

// ObservePlan records one planning attempt.
func (m *Metrics) ObservePlan(strategy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.plansTotal.WithLabelValues(strategy, outcome).Inc()
	m.planDuration.Observe(d.Seconds())
}

// ObserveGraph records one finished graph run.
func (m *Metrics) ObserveGraph(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.graphRunsTotal.WithLabelValues(status).Inc()
	m.graphDuration.Observe(d.Seconds())
}

// ObserveTask records one task reaching a terminal status.
func (m *Metrics) ObserveTask(status, tool string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status, tool).Inc()
	m.taskDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveRetry records one retry attempt.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.taskRetriesTotal.Inc()
}

// ObserveCheck records one review check result.
func (m *Metrics) ObserveCheck(checkType, status string) {
	if m == nil {
		return
	}
	m.reviewChecksTotal.WithLabelValues(checkType, status).Inc()
}

// ObserveReview records the duration of one task review.
func (m *Metrics) ObserveReview(d time.Duration) {
	if m == nil {
		return
	}
	m.reviewDuration.Observe(d.Seconds())
}
