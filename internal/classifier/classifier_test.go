package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func sampleInput() Input {
	return Input{
		SourceKind:           events.SourceDepeg,
		SourceEventID:        "evt-1",
		ExpectedProfitPct:    money.D(0.02),
		ExpectedProfitUsd:    money.D(200),
		Severity:             money.D(0.4),
		Volatility:           money.D(0.3),
		LiquidityUsd:         money.D(500_000),
		HistoricalSuccess:    money.D(0.7),
		ReversionTimeMs:      int64(30 * time.Minute / time.Millisecond),
		MaxReversionTimeMs:   int64(48 * time.Hour / time.Millisecond),
		MarketConditionScore: money.D(60),
		Confidence:           money.D(0.8),
		WinProbability:       money.D(0.65),
		WinLossRatio:         money.D(1.5),
		EntryVenues:          []events.VenueScore{{Venue: "kraken", Score: money.D(80)}, {Venue: "binance", Score: money.D(90)}},
		ExitVenues:           []events.VenueScore{{Venue: "okx", Score: money.D(70)}},
	}
}

func TestClassifyRiskAdjustedNeverExceedsOverall(t *testing.T) {
	c := New(DefaultConfig())
	out := c.Classify(time.Now(), sampleInput(), nil)
	assert.True(t, out.RiskAdjustedScore.LessThanOrEqual(out.OpportunityScore))
}

func TestClassifyBestEntryVenuesSortedDescending(t *testing.T) {
	c := New(DefaultConfig())
	out := c.Classify(time.Now(), sampleInput(), nil)
	assert.Equal(t, "binance", out.BestEntryVenues[0].Venue)
}

func TestClassifyPositionSizeRespectsAbsoluteCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AbsoluteCap = money.D(100)
	c := New(cfg)
	out := c.Classify(time.Now(), sampleInput(), &Portfolio{AvailableCapital: money.D(1_000_000)})
	assert.True(t, out.RecommendedPositionSize.LessThanOrEqual(money.D(100)))
}

func TestClassifyHighRiskReducesLeverage(t *testing.T) {
	c := New(DefaultConfig())
	low := sampleInput()
	low.Severity = money.D(0.05)
	low.Volatility = money.D(0.05)
	low.LiquidityUsd = money.D(5_000_000)

	high := sampleInput()
	high.Severity = money.D(0.95)
	high.Volatility = money.D(0.9)
	high.LiquidityUsd = money.D(1_000)

	lowOut := c.Classify(time.Now(), low, nil)
	highOut := c.Classify(time.Now(), high, nil)
	assert.True(t, highOut.RecommendedLeverage.LessThan(lowOut.RecommendedLeverage))
	assert.Equal(t, events.RiskLow, lowOut.RiskLevel)
}

func TestRankEntryVenuesCombinesWeights(t *testing.T) {
	price := map[string]money.Dec{"a": money.D(100), "b": money.D(50)}
	liquidity := map[string]money.Dec{"a": money.D(10), "b": money.D(100)}
	ranked := RankEntryVenues(price, liquidity)
	assert.Equal(t, "a", ranked[0].Venue, "price improvement weighted 0.7 dominates")
}
