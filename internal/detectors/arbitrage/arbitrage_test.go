package arbitrage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

func TestEvaluateRejectsWhenSellNotAboveBuy(t *testing.T) {
	d := New(DefaultConfig(), nil)
	buy := Quote{Venue: "kraken", Price: money.D(100), Liquidity: money.D(1_000_000)}
	sell := Quote{Venue: "binance", Price: money.D(99), Liquidity: money.D(1_000_000)}
	assert.Nil(t, d.Evaluate("USDX", buy, sell, ports.FeeSchedule{}, ports.FeeSchedule{}, time.Now()))
}

func TestEvaluateEmitsProfitableOpportunity(t *testing.T) {
	d := New(DefaultConfig(), nil)
	buy := Quote{Venue: "kraken", Price: money.D(100), Liquidity: money.D(1_000_000)}
	sell := Quote{Venue: "binance", Price: money.D(101), Liquidity: money.D(1_000_000)}
	fees := ports.FeeSchedule{TradingFeePct: money.D(0.0005), TransferTimeMs: 60_000}

	opp := d.Evaluate("USDX", buy, sell, fees, fees, time.Now())
	require.NotNil(t, opp)
	assert.Equal(t, "kraken", opp.BuyVenue)
	assert.Equal(t, "binance", opp.SellVenue)
	assert.True(t, opp.Risk.OverallRisk.LessThanOrEqual(DefaultConfig().MaxOverallRisk))
}

func TestEvaluateRejectsWhenFeesExceedEdge(t *testing.T) {
	d := New(DefaultConfig(), nil)
	buy := Quote{Venue: "kraken", Price: money.D(100), Liquidity: money.D(1_000_000)}
	sell := Quote{Venue: "binance", Price: money.D(100.1), Liquidity: money.D(1_000_000)}
	fees := ports.FeeSchedule{TradingFeePct: money.D(0.01)}

	assert.Nil(t, d.Evaluate("USDX", buy, sell, fees, fees, time.Now()))
}

func TestEvaluateAllPairwise(t *testing.T) {
	d := New(DefaultConfig(), nil)
	quotes := []Quote{
		{Venue: "kraken", Price: money.D(100), Liquidity: money.D(1_000_000)},
		{Venue: "binance", Price: money.D(101), Liquidity: money.D(1_000_000)},
		{Venue: "okx", Price: money.D(99.5), Liquidity: money.D(1_000_000)},
	}
	fees := ports.FeeSchedule{TradingFeePct: money.D(0.0005), TransferTimeMs: 60_000}
	feesByVenue := map[string]ports.FeeSchedule{"kraken": fees, "binance": fees, "okx": fees}

	out := d.EvaluateAll("USDX", quotes, feesByVenue, time.Now())
	assert.NotEmpty(t, out)
}
