package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus metrics for graph execution. All metrics are
// namespaced "stategraph".
//
// Metrics exposed:
//
//   - active_executions (gauge): executions currently in their run loop.
//   - step_latency_seconds (histogram): capability invocation duration,
//     labeled by node_id and status (success|error|interrupt).
//   - retries_total (counter): transient-failure retries, labeled by node_id.
//   - checkpoint_conflicts_total (counter): version conflicts hit while
//     appending checkpoints.
//   - interrupts_total (counter): capability-initiated pauses.
//
// Register with a custom registry and expose via promhttp:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewMetrics(registry)
//	engine, _ := graph.NewEngine(g, st, mux, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	activeExecutions prometheus.Gauge
	stepLatency      *prometheus.HistogramVec
	retries          *prometheus.CounterVec
	conflicts        prometheus.Counter
	interrupts       prometheus.Counter
}

// NewMetrics creates and registers execution metrics on reg. Pass
// prometheus.DefaultRegisterer to use the process-global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		activeExecutions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "stategraph",
			Name:      "active_executions",
			Help:      "Number of executions currently running.",
		}),
		stepLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "step_latency_seconds",
			Help:      "Capability invocation duration per node.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 60},
		}, []string{"node_id", "status"}),
		retries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "retries_total",
			Help:      "Transient capability failures retried.",
		}, []string{"node_id"}),
		conflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "checkpoint_conflicts_total",
			Help:      "Checkpoint appends that hit a version conflict.",
		}),
		interrupts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "interrupts_total",
			Help:      "Capability-initiated execution pauses.",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.activeExecutions.Inc()
	}
}

func (m *Metrics) runEnded() {
	if m != nil {
		m.activeExecutions.Dec()
	}
}

func (m *Metrics) observeStep(nodeID, status string, d time.Duration) {
	if m != nil {
		m.stepLatency.WithLabelValues(nodeID, status).Observe(d.Seconds())
	}
}

func (m *Metrics) retried(nodeID string) {
	if m != nil {
		m.retries.WithLabelValues(nodeID).Inc()
	}
}

func (m *Metrics) conflicted() {
	if m != nil {
		m.conflicts.Inc()
	}
}

func (m *Metrics) interrupted() {
	if m != nil {
		m.interrupts.Inc()
	}
}
