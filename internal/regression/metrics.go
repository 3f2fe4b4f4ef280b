package regression

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raysh454/regress/internal/model"
)

// Outcomes recorded on the evaluations counter.
const (
	outcomeEvaluated   = "evaluated"
	outcomeUnchanged   = "unchanged"
	outcomeDisabled    = "disabled"
	outcomeStorageFail = "storage_unavailable"
	outcomePeek        = "peek"
)

// Metrics holds the engine's prometheus collectors. Each instance registers
// on its own registry so tests and multiple engines never collide.
type Metrics struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	warnings    *prometheus.CounterVec
	duration    prometheus.Histogram
	batchDocs   *prometheus.CounterVec
	batchRuns   prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regress",
			Name:      "evaluations_total",
			Help:      "Document evaluations by outcome",
		}, []string{"outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regress",
			Name:      "warnings_total",
			Help:      "Warnings surfaced by type",
		}, []string{"type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "regress",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating one document",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		batchDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regress",
			Subsystem: "batch",
			Name:      "documents_total",
			Help:      "Documents handled by batch runs by result",
		}, []string{"result"}),
		batchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regress",
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Completed batch runs",
		}),
	}
	m.registry.MustRegister(m.evaluations, m.warnings, m.duration, m.batchDocs, m.batchRuns)
	return m
}

// Registry exposes the collectors for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeEvaluation(outcome string, status *model.RegressionStatus, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	if status == nil {
		return
	}
	for _, w := range status.Warnings {
		m.warnings.WithLabelValues(string(w.Type)).Inc()
	}
}

func (m *Metrics) observeBatchDocument(result string) {
	if m == nil {
		return
	}
	m.batchDocs.WithLabelValues(result).Inc()
}

func (m *Metrics) observeBatchRun() {
	if m == nil {
		return
	}
	m.batchRuns.Inc()
}
