package liquidity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func book() events.OrderBook {
	return events.BuildOrderBook("kraken", "BTC-USD",
		[]events.OrderBookLevel{{Price: money.D(99), Qty: money.D(2)}, {Price: money.D(98), Qty: money.D(3)}},
		[]events.OrderBookLevel{{Price: money.D(101), Qty: money.D(1)}, {Price: money.D(102), Qty: money.D(4)}},
		time.Now(),
	)
}

func TestScoreWithinBounds(t *testing.T) {
	a := New(DefaultConfig())
	score := a.Score(book(), money.D(10_000_000), []money.Dec{money.D(100), money.D(110), money.D(95)}, money.D(0.6))
	assert.True(t, score.GreaterThanOrEqual(money.Zero))
	assert.True(t, score.LessThanOrEqual(money.D(100)))
}

func TestWalkSlippageZeroSizeProducesZeroResult(t *testing.T) {
	a := New(DefaultConfig())
	res := a.WalkSlippage(book().Asks, money.Zero, money.D(100), ImpactSquareRoot)
	assert.True(t, res.SlippagePct.IsZero())
}

func TestWalkSlippageMonotonicWithSize(t *testing.T) {
	a := New(DefaultConfig())
	small := a.WalkSlippage(book().Asks, money.D(1), money.D(100), ImpactSquareRoot)
	large := a.WalkSlippage(book().Asks, money.D(5), money.D(100), ImpactSquareRoot)
	assert.True(t, large.SlippagePct.GreaterThanOrEqual(small.SlippagePct), "larger orders should not have lower slippage")
}

func TestWalkSlippagePartialFill(t *testing.T) {
	a := New(DefaultConfig())
	res := a.WalkSlippage(book().Asks, money.D(100), money.D(100), ImpactLinear)
	assert.False(t, res.FullyFilled)
}
