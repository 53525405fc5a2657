package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

func TestSubscribePricesReceivesFedTicks(t *testing.T) {
	c := New(clock.NewSimulated(time.Now()))
	ch, err := c.SubscribePrices(context.Background(), ports.PriceFilter{})
	require.NoError(t, err)

	tick := events.PriceTick{Exchange: "kraken", Symbol: "BTC-USD", Price: money.D(65000), Timestamp: time.Now()}
	c.Feed(tick)

	select {
	case got := <-ch:
		assert.Equal(t, "BTC-USD", got.Symbol)
	case <-time.After(time.Second):
		t.Fatal("expected tick within timeout")
	}
}

func TestPlaceOrderMarketFillsAtSuppliedPrice(t *testing.T) {
	c := New(clock.NewSimulated(time.Now()))
	price := money.D(100)
	res, err := c.PlaceOrder(context.Background(), "kraken", ports.Buy, money.D(2), ports.OrderMarket, &price)
	require.NoError(t, err)
	assert.True(t, res.FilledPrice.Equal(money.D(100)))
	assert.True(t, res.FilledSize.Equal(money.D(2)))
	assert.Equal(t, "filled", res.Status)
}

func TestPlaceOrderLimitRequiresPrice(t *testing.T) {
	c := New(clock.NewSimulated(time.Now()))
	_, err := c.PlaceOrder(context.Background(), "kraken", ports.Sell, money.D(1), ports.OrderLimit, nil)
	assert.Error(t, err)
}

func TestCancelOrderRejectsUnknownID(t *testing.T) {
	c := New(clock.NewSimulated(time.Now()))
	assert.Error(t, c.CancelOrder(context.Background(), "kraken", "nope"))
}

func TestFeesReturnsOverrideThenDefault(t *testing.T) {
	c := New(clock.NewSimulated(time.Now()))
	fs, err := c.Fees(context.Background(), "kraken", "BTC")
	require.NoError(t, err)
	assert.True(t, fs.TradingFeePct.Equal(DefaultFeeSchedule.TradingFeePct))

	override := ports.FeeSchedule{TradingFeePct: money.D(0.0005)}
	c.SetFees("kraken", "BTC", override)
	fs, err = c.Fees(context.Background(), "kraken", "BTC")
	require.NoError(t, err)
	assert.True(t, fs.TradingFeePct.Equal(money.D(0.0005)))
}
