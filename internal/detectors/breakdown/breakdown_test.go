package breakdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/correlation"
	"github.com/riftline/ineffic-engine/internal/money"
)

func TestEvaluateReturnsNothingWithoutSeries(t *testing.T) {
	store := correlation.NewStore("BTC", correlation.DefaultConfig())
	d := New(store, func(pair string, now time.Time) (correlation.ReturnSeries, correlation.ReturnSeries, money.Dec, bool) {
		return correlation.ReturnSeries{}, correlation.ReturnSeries{}, money.Zero, false
	})
	ev, changed := d.Evaluate("ETH", time.Now())
	assert.False(t, changed)
	assert.Nil(t, ev)
}

func TestEvaluateDetectsThenReverts(t *testing.T) {
	cfg := correlation.DefaultConfig()
	cfg.MinSamples = 10
	store := correlation.NewStore("BTC", cfg)
	now := time.Now()

	vals := []float64{0.01, -0.02, 0.03, -0.01, 0.02, 0.015, -0.005, 0.01, -0.02, 0.025}
	ts := make([]time.Time, len(vals))
	rets := make([]money.Dec, len(vals))
	for i, v := range vals {
		ts[i] = now.Add(time.Duration(i) * time.Minute)
		rets[i] = money.D(v)
	}
	baseline := correlation.ReturnSeries{Timestamps: ts, Returns: rets}
	_, err := store.Recompute("ETH", baseline, baseline, now)
	require.NoError(t, err)

	inverted := make([]money.Dec, len(vals))
	for i, v := range vals {
		inverted[i] = money.D(-v)
	}
	breaking := true
	d := New(store, func(pair string, now time.Time) (correlation.ReturnSeries, correlation.ReturnSeries, money.Dec, bool) {
		if breaking {
			return baseline, correlation.ReturnSeries{Timestamps: ts, Returns: inverted}, money.D(0.9), true
		}
		return baseline, baseline, money.D(0.9), true
	})

	ev, changed := d.Evaluate("ETH", now)
	require.True(t, changed)
	require.NotNil(t, ev)

	breaking = false
	ev2, changed2 := d.Evaluate("ETH", now)
	require.True(t, changed2)
	require.NotNil(t, ev2)
}
