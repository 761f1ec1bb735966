package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for the run service.
type Metrics struct {
	EvaluationsTotal prometheus.Counter
	PenaltiesTotal   prometheus.Counter
	RunsActive       prometheus.Gauge
	BestObjective    *prometheus.GaugeVec
}

// NewMetrics registers the run service collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strata_evaluations_total",
			Help: "Total number of evaluations told to strategies.",
		}),
		PenaltiesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "strata_penalties_total",
			Help: "Total number of evaluator failures converted to penalty records.",
		}),
		RunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "strata_runs_active",
			Help: "Number of optimization runs currently executing.",
		}),
		BestObjective: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strata_best_objective",
			Help: "Best objective seen so far, per run.",
		}, []string{"run"}),
	}
}
