package events

import (
	"testing"
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestTradeStatusMonotoneDAG(t *testing.T) {
	assert.True(t, CanTransitionTrade(TradePending, TradeEntered))
	assert.True(t, CanTransitionTrade(TradeEntered, TradeExited))
	assert.True(t, CanTransitionTrade(TradeEntered, TradePartial))
	assert.False(t, CanTransitionTrade(TradeEntered, TradePending), "no backwards transition")
	assert.False(t, CanTransitionTrade(TradeExited, TradeEntered), "terminal state rejects transitions")
	assert.False(t, CanTransitionTrade(TradeFailed, TradePending))
}

func TestDepegStatusDAG(t *testing.T) {
	low := money.D(0.01)
	high := money.D(0.02)

	assert.True(t, DepegActive.CanTransition(DepegWorsening, high, low))
	assert.True(t, DepegWorsening.CanTransition(DepegActive, low, high), "worsening may return to active with equal-or-lower deviation")
	assert.False(t, DepegWorsening.CanTransition(DepegActive, high, low), "worsening cannot return to active with higher deviation")
	assert.False(t, DepegResolved.CanTransition(DepegActive, low, low), "resolved is terminal")
}

func TestOrderBookValidRejectsCrossedBook(t *testing.T) {
	ob := BuildOrderBook("kraken", "BTC-USD",
		[]OrderBookLevel{{Price: money.D(100), Qty: money.D(1)}},
		[]OrderBookLevel{{Price: money.D(99), Qty: money.D(1)}},
		time.Now(),
	)
	assert.False(t, ob.Valid())
}

func TestBuildOrderBookComputesSpread(t *testing.T) {
	ob := BuildOrderBook("kraken", "BTC-USD",
		[]OrderBookLevel{{Price: money.D(99), Qty: money.D(2)}, {Price: money.D(98), Qty: money.D(3)}},
		[]OrderBookLevel{{Price: money.D(101), Qty: money.D(1)}, {Price: money.D(102), Qty: money.D(4)}},
		time.Now(),
	)
	assert.True(t, ob.Valid())
	assert.True(t, ob.BestBid.Equal(money.D(99)))
	assert.True(t, ob.BestAsk.Equal(money.D(101)))
	assert.True(t, ob.Spread.Equal(money.D(2)))
}
