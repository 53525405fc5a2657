package correlation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/money"
)

func series(start time.Time, vals []float64) ReturnSeries {
	ts := make([]time.Time, len(vals))
	rs := make([]money.Dec, len(vals))
	for i, v := range vals {
		ts[i] = start.Add(time.Duration(i) * time.Minute)
		rs[i] = money.D(v)
	}
	return ReturnSeries{Timestamps: ts, Returns: rs}
}

func constRun(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRecomputeRejectsSmallSample(t *testing.T) {
	s := NewStore("BTC", DefaultConfig())
	now := time.Now()
	ref := series(now, []float64{0.01, -0.02, 0.015})
	alt := series(now, []float64{0.012, -0.019, 0.014})
	_, err := s.Recompute("ETH", ref, alt, now)
	assert.Error(t, err)
}

func TestRecomputePerfectCorrelation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	s := NewStore("BTC", cfg)
	now := time.Now()
	vals := []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.015, -0.005, 0.01, -0.02, 0.025}
	ref := series(now, vals)
	alt := series(now, vals) // identical series, rho should be ~1

	c, err := s.Recompute("ETH", ref, alt, now)
	require.NoError(t, err)
	assert.True(t, c.CorrelationCoefficient.GreaterThanOrEqual(money.D(0.99)))
	assert.Equal(t, 10, c.SampleSize)
}

func TestCheckBreakdownRequiresBaseline(t *testing.T) {
	s := NewStore("BTC", DefaultConfig())
	now := time.Now()
	recent := series(now, constRun(20, 0.01))
	_, ok := s.CheckBreakdown("ETH", recent, recent, money.D(0.9), now)
	assert.False(t, ok, "no baseline correlation recorded yet")
}

func TestCheckBreakdownDetectsDeviation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinSamples = 10
	s := NewStore("BTC", cfg)
	now := time.Now()
	vals := []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.015, -0.005, 0.01, -0.02, 0.025}
	ref := series(now, vals)
	alt := series(now, vals)
	_, err := s.Recompute("ETH", ref, alt, now)
	require.NoError(t, err)

	// Recent series anti-correlated vs. baseline's near-perfect correlation.
	inverted := make([]float64, len(vals))
	for i, v := range vals {
		inverted[i] = -v
	}
	recentRef := series(now, vals)
	recentAlt := series(now, inverted)

	ev, ok := s.CheckBreakdown("ETH", recentRef, recentAlt, money.D(0.9), now)
	require.True(t, ok)
	assert.Equal(t, "ETH", ev.Pair)
	assert.True(t, ev.Deviation.GreaterThan(cfg.BreakdownDelta.Sub(money.D(0.01))))
}
