// Package simulated implements an in-memory ports.ExchangeClient used by
// the replay runner and unit tests, since no production exchange
// connector ships with this module. It is a deterministic, clock-driven
// reference implementation rather than a per-test throwaway stub, so the
// same client backs both `engined replay` and the test suite.
package simulated

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

// DefaultFeeSchedule is used for any venue/asset pair with no override.
var DefaultFeeSchedule = ports.FeeSchedule{
	TradingFeePct:  money.D(0.001),
	WithdrawalFee:  money.D(0),
	DepositFee:     money.D(0),
	NetworkFee:     money.D(0),
	TransferTimeMs: 0,
}

// Client is a deterministic, in-memory ExchangeClient. Orders fill
// immediately at the price passed to PlaceOrder (zero when none is
// given), and fees come from a configurable per-venue override table.
type Client struct {
	clk clock.Clock

	mu        sync.Mutex
	lastPrice map[string]money.Dec // venue|symbol -> last published price
	fees      map[string]ports.FeeSchedule
	orders    map[string]ports.OrderResult

	tickSubs [](chan events.PriceTick)
	bookSubs [](chan events.OrderBook)
}

// New constructs a Client driven by clk (use clock.NewSimulated for
// deterministic replay, clock.NewReal for live demos).
func New(clk clock.Clock) *Client {
	return &Client{
		clk:       clk,
		lastPrice: make(map[string]money.Dec),
		fees:      make(map[string]ports.FeeSchedule),
		orders:    make(map[string]ports.OrderResult),
	}
}

func venueKey(venue, symbol string) string { return venue + "|" + symbol }

// Now returns the client's clock time, letting callers (the replay
// runner in particular) stamp synthesized events against the same
// deterministic clock driving the rest of the pipeline.
func (c *Client) Now() time.Time { return c.clk.Now() }

// SetFees overrides the fee schedule for a venue/asset pair.
func (c *Client) SetFees(venue, asset string, fs ports.FeeSchedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fees[venueKey(venue, asset)] = fs
}

// Feed injects a PriceTick as if received from the venue, updating the
// last-price table and fanning out to subscribers. Used by the replay
// runner to drive the pipeline off a recorded log.
func (c *Client) Feed(t events.PriceTick) {
	c.mu.Lock()
	c.lastPrice[venueKey(t.Exchange, t.Symbol)] = t.Price
	subs := append([](chan events.PriceTick){}, c.tickSubs...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- t:
		default:
		}
	}
}

// FeedBook injects an OrderBook the same way Feed injects a PriceTick.
func (c *Client) FeedBook(ob events.OrderBook) {
	c.mu.Lock()
	subs := append([](chan events.OrderBook){}, c.bookSubs...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ob:
		default:
		}
	}
}

// SubscribePrices returns a channel receiving every Fed tick; filter is
// not applied. Filtering by symbol/exchange happens at Feed-time via the
// caller choosing what to inject; this reference client does not itself
// filter, keeping tests simple — callers feed exactly what they want
// observed.
func (c *Client) SubscribePrices(ctx context.Context, filter ports.PriceFilter) (<-chan events.PriceTick, error) {
	ch := make(chan events.PriceTick, 64)
	c.mu.Lock()
	c.tickSubs = append(c.tickSubs, ch)
	c.mu.Unlock()
	return ch, nil
}

// SubscribeOrderBooks returns a channel receiving every FedBook update.
func (c *Client) SubscribeOrderBooks(ctx context.Context, filter ports.PriceFilter) (<-chan events.OrderBook, error) {
	ch := make(chan events.OrderBook, 64)
	c.mu.Lock()
	c.bookSubs = append(c.bookSubs, ch)
	c.mu.Unlock()
	return ch, nil
}

// PlaceOrder fills immediately and synchronously. Limit orders fill at
// the requested price; market orders fill at price if the caller
// supplied one (the execution plan always does, having already chosen a
// venue-quoted price), or zero otherwise — this reference client has no
// per-asset quote of its own to fall back on, since the ExchangeClient
// port carries no symbol argument.
func (c *Client) PlaceOrder(ctx context.Context, venue string, side ports.OrderSide, size money.Dec, typ ports.OrderType, price *money.Dec) (ports.OrderResult, error) {
	if typ == ports.OrderLimit && price == nil {
		return ports.OrderResult{}, fmt.Errorf("simulated: limit order requires a price")
	}

	fillPrice := money.Zero
	if price != nil {
		fillPrice = *price
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res := ports.OrderResult{
		OrderID:     uuid.NewString(),
		FilledSize:  size,
		FilledPrice: fillPrice,
		Status:      "filled",
	}
	c.orders[res.OrderID] = res
	return res, nil
}

// CancelOrder marks a previously placed order cancelled. Since orders
// fill synchronously in PlaceOrder, this is a no-op success for any
// known order ID and an error otherwise.
func (c *Client) CancelOrder(ctx context.Context, venue, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[orderID]; !ok {
		return fmt.Errorf("simulated: unknown order %s", orderID)
	}
	return nil
}

// Withdraw is a no-op success; the reference client does not model
// on-chain settlement.
func (c *Client) Withdraw(ctx context.Context, asset string, amount money.Dec, to string) error {
	return nil
}

// Deposit is a no-op success.
func (c *Client) Deposit(ctx context.Context, asset string, amount money.Dec) error {
	return nil
}

// Fees returns the per-venue override if set, else DefaultFeeSchedule.
func (c *Client) Fees(ctx context.Context, venue, asset string) (ports.FeeSchedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fs, ok := c.fees[venueKey(venue, asset)]; ok {
		return fs, nil
	}
	return DefaultFeeSchedule, nil
}

var _ ports.ExchangeClient = (*Client)(nil)
