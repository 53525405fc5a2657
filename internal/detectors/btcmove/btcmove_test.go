package btcmove

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/correlation"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/window"
)

func TestEvaluateMovementsDetectsSignificant(t *testing.T) {
	cfg := DefaultConfig()
	win := window.New(24*time.Hour, time.Hour)
	now := time.Now()
	win.Append(window.Sample{Timestamp: now.Add(-5 * time.Minute), Price: money.D(100), Volume: money.D(1_000_000)})
	win.Append(window.Sample{Timestamp: now, Price: money.D(104), Volume: money.D(1_000_000)})

	corrs := correlation.NewStore("BTC", correlation.DefaultConfig())
	d := New(cfg, win, corrs)

	moves := d.EvaluateMovements(now)
	require.NotEmpty(t, moves)
	found := false
	for _, m := range moves {
		if m.Significant {
			found = true
			assert.Equal(t, events.DirUp, m.Direction)
		}
	}
	assert.True(t, found, "a 4% move should be classified significant")
}

func TestEvaluateMomentumTransferRequiresCorrelation(t *testing.T) {
	cfg := DefaultConfig()
	win := window.New(24*time.Hour, time.Hour)
	corrs := correlation.NewStore("BTC", correlation.DefaultConfig())
	d := New(cfg, win, corrs)

	m := events.BitcoinMovement{ID: "m1", MagnitudePct: money.D(0.05), Significant: true}
	out := d.EvaluateMomentumTransfer(time.Now(), m, []string{"ETH"})
	assert.Empty(t, out, "no correlation on record means no opportunity")
}

func TestEvaluateMomentumTransferEmitsOpportunity(t *testing.T) {
	cfg := DefaultConfig()
	win := window.New(24*time.Hour, time.Hour)
	corrCfg := correlation.DefaultConfig()
	corrCfg.MinSamples = 3
	corrs := correlation.NewStore("BTC", corrCfg)
	now := time.Now()
	refS := correlation.ReturnSeries{
		Timestamps: []time.Time{now, now.Add(time.Minute), now.Add(2 * time.Minute)},
		Returns:    []money.Dec{money.D(0.01), money.D(0.02), money.D(0.015)},
	}
	altS := correlation.ReturnSeries{
		Timestamps: []time.Time{now, now.Add(time.Minute), now.Add(2 * time.Minute)},
		Returns:    []money.Dec{money.D(0.012), money.D(0.021), money.D(0.014)},
	}
	_, err := corrs.Recompute("ETH-BTC", refS, altS, now)
	require.NoError(t, err)

	d := New(cfg, win, corrs)
	m := events.BitcoinMovement{ID: "m1", MagnitudePct: money.D(0.05), Significant: true}
	out := d.EvaluateMomentumTransfer(now, m, []string{"ETH"})
	require.Len(t, out, 1)
	assert.Equal(t, "ETH", out[0].Altcoin)
	assert.Equal(t, "m1", out[0].SourceMovementID)
}
