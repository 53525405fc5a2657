package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	// A vector only gathers a family once it has at least one child series.
	m.DetectionsTotal.WithLabelValues("depeg")
	m.ClassificationsTotal.WithLabelValues("depeg")
	m.OpportunityScore.WithLabelValues("depeg")
	m.RiskAdjustedScore.WithLabelValues("depeg")
	m.TradeTransitionsTotal.WithLabelValues("entered")
	m.TradePnL.WithLabelValues("depeg")
	m.ExitSignalsTotal.WithLabelValues("stop-loss", "high")
	m.PlanValidationsTotal.WithLabelValues("true")

	mf, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mf, 8)

	m.DetectionsTotal.WithLabelValues("depeg").Inc()
	assert.Equal(t, float64(1), counterValue(t, m.DetectionsTotal.WithLabelValues("depeg")))
}

func TestHistogramsAcceptObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OpportunityScore.WithLabelValues("depeg").Observe(72.5)
	m.RiskAdjustedScore.WithLabelValues("depeg").Observe(60.0)
	m.TradePnL.WithLabelValues("depeg").Observe(123.45)

	mf, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mf)
}
