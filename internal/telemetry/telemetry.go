// Package telemetry exposes Prometheus collectors for the engine's
// ambient observability surface: per-detector emission counters,
// classifier score histograms, and supervisor state-transition counters.
// Every pipeline stage gets its own collector, independent of whether
// that stage is otherwise scoped down.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine registers.
type Metrics struct {
	DetectionsTotal       *prometheus.CounterVec
	ClassificationsTotal  *prometheus.CounterVec
	OpportunityScore      *prometheus.HistogramVec
	RiskAdjustedScore     *prometheus.HistogramVec
	TradeTransitionsTotal *prometheus.CounterVec
	TradePnL              *prometheus.HistogramVec
	ExitSignalsTotal      *prometheus.CounterVec
	PlanValidationsTotal  *prometheus.CounterVec
}

// New constructs the Metrics bundle and registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ineffic",
			Name:      "detections_total",
			Help:      "Count of raw detector emissions by detector family.",
		}, []string{"detector"}),
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ineffic",
			Name:      "classifications_total",
			Help:      "Count of classified opportunities by source kind.",
		}, []string{"source_kind"}),
		OpportunityScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ineffic",
			Name:      "opportunity_score",
			Help:      "Distribution of classifier opportunity scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}, []string{"source_kind"}),
		RiskAdjustedScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ineffic",
			Name:      "risk_adjusted_score",
			Help:      "Distribution of classifier risk-adjusted scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}, []string{"source_kind"}),
		TradeTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ineffic",
			Name:      "trade_transitions_total",
			Help:      "Count of trade lifecycle status transitions.",
		}, []string{"status"}),
		TradePnL: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ineffic",
			Name:      "trade_pnl_usd",
			Help:      "Distribution of realized trade PnL in USD.",
			Buckets:   prometheus.ExponentialBucketsRange(1, 10000, 12),
		}, []string{"strategy"}),
		ExitSignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ineffic",
			Name:      "exit_signals_total",
			Help:      "Count of exit signals emitted by type.",
		}, []string{"type", "urgency"}),
		PlanValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ineffic",
			Name:      "plan_validations_total",
			Help:      "Count of execution plan validation outcomes.",
		}, []string{"accepted"}),
	}

	reg.MustRegister(
		m.DetectionsTotal, m.ClassificationsTotal, m.OpportunityScore, m.RiskAdjustedScore,
		m.TradeTransitionsTotal, m.TradePnL, m.ExitSignalsTotal, m.PlanValidationsTotal,
	)
	return m
}
