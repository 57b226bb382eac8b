// Package observability exposes Prometheus metrics for simulation and
// optimization runs.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "riskmodels"

// Metrics groups the collectors the engine and optimizer update.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SimulationsTotal     *prometheus.CounterVec
	TrialsTotal          prometheus.Counter
	SimulationDuration   *prometheus.HistogramVec
	OptimizationsTotal   *prometheus.CounterVec
	CandidatesEvaluated  *prometheus.CounterVec
	OptimizationDuration *prometheus.HistogramVec
	InvalidArguments     *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SimulationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Monte Carlo batches completed, by combination rule.",
		}, []string{"rule"}),
		TrialsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Trials drawn across all completed batches.",
		}),
		SimulationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Wall time of a Monte Carlo batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"rule"}),
		OptimizationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Portfolio optimizations completed, by method.",
		}, []string{"method"}),
		CandidatesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_candidates_total",
			Help:      "Weight vectors evaluated by the optimizer.",
		}, []string{"method"}),
		OptimizationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimization_duration_seconds",
			Help:      "Wall time of a portfolio optimization.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"method"}),
		InvalidArguments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_arguments_total",
			Help:      "Requests rejected at validation, by operation.",
		}, []string{"operation"}),
	}
}

// ObserveSimulation records one completed batch.
func (m *Metrics) ObserveSimulation(rule string, trials int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SimulationsTotal.WithLabelValues(rule).Inc()
	m.TrialsTotal.Add(float64(trials))
	m.SimulationDuration.WithLabelValues(rule).Observe(elapsed.Seconds())
}

// ObserveOptimization records one completed optimization.
func (m *Metrics) ObserveOptimization(method string, candidates int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OptimizationsTotal.WithLabelValues(method).Inc()
	m.CandidatesEvaluated.WithLabelValues(method).Add(float64(candidates))
	m.OptimizationDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RejectedArgument counts a validation failure for operation.
func (m *Metrics) RejectedArgument(operation string) {
	if m == nil {
		return
	}
	m.InvalidArguments.WithLabelValues(operation).Inc()
}
