package planbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func sampleOpp() events.OpportunityClassification {
	return events.OpportunityClassification{
		ID:                "opp-1",
		ExpectedProfitPct: money.D(0.03),
		ConfidenceLevel:   money.D(0.8),
	}
}

func sampleVenues() []VenueLiquidity {
	return []VenueLiquidity{
		{Venue: "kraken", Score: money.D(80), AvailableLiquidity: money.D(1_000_000)},
		{Venue: "binance", Score: money.D(60), AvailableLiquidity: money.D(500_000)},
		{Venue: "okx", Score: money.D(2), AvailableLiquidity: money.D(10_000)},
	}
}

func TestBuildChoosesMarketForSmallSize(t *testing.T) {
	b := New(DefaultConfig())
	plan := b.Build(time.Now(), "ETH", sampleOpp(), money.D(1000), sampleVenues(), money.D(105), money.D(100))
	assert.Equal(t, events.MethodMarket, plan.EntryStrategy.Method)
}

func TestBuildSkipsTinyAllocations(t *testing.T) {
	b := New(DefaultConfig())
	plan := b.Build(time.Now(), "ETH", sampleOpp(), money.D(1000), sampleVenues(), money.D(105), money.D(100))
	for _, step := range plan.EntryStrategy.Steps {
		assert.NotEqual(t, "okx", step.Venue, "okx's near-zero score allocation should be skipped")
	}
}

func TestBuildExitHasThreeTranchesSummingToOne(t *testing.T) {
	b := New(DefaultConfig())
	plan := b.Build(time.Now(), "ETH", sampleOpp(), money.D(1000), sampleVenues(), money.D(105), money.D(100))
	sum := money.Zero
	for _, p := range plan.ExitStrategy.PartialExits {
		sum = sum.Add(p.Pct)
	}
	assert.True(t, sum.Equal(money.D(1.0)))
}

func TestValidateRejectsNonPositiveProfit(t *testing.T) {
	b := New(DefaultConfig())
	opp := sampleOpp()
	opp.ExpectedProfitPct = money.D(-0.01)
	plan := b.Build(time.Now(), "ETH", opp, money.D(1000), sampleVenues(), money.D(99), money.D(100))
	verdict := b.Validate(plan)
	assert.False(t, verdict.Accepted)
	assert.NotEmpty(t, verdict.Reasons)
}

func TestValidateAcceptsHealthyPlan(t *testing.T) {
	b := New(DefaultConfig())
	plan := b.Build(time.Now(), "ETH", sampleOpp(), money.D(100), sampleVenues(), money.D(105), money.D(100))
	verdict := b.Validate(plan)
	assert.True(t, verdict.Accepted, verdict.Reasons)
}
