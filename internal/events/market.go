// Package events defines the core data model shared by every component in
// the pipeline: market observations, detector events, classifications,
// execution plans, and trade lifecycle records. Types are immutable value
// objects passed over channels; no component shares a mutable object graph
// with another.
package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// PriceTick is an immutable market observation from a single venue.
type PriceTick struct {
	Exchange   string
	Symbol     string
	Price      money.Dec
	Volume24h  money.Dec
	Liquidity  money.Dec
	Timestamp  time.Time
}

// Key returns the (exchange, symbol, timestamp) tuple that identifies a
// tick.
func (t PriceTick) Key() (string, string, time.Time) {
	return t.Exchange, t.Symbol, t.Timestamp
}

// OrderBookLevel is one price/qty rung. Qty and value accumulate as the
// book is walked: ascending for asks, descending for bids.
type OrderBookLevel struct {
	Price           money.Dec
	Qty             money.Dec
	CumulativeQty   money.Dec
	CumulativeValue money.Dec
}

// OrderBook is a venue/pair snapshot. Invariant: BestAsk >= BestBid, and
// both Bids and Asks cumulative arrays are monotonically increasing.
type OrderBook struct {
	Exchange     string
	Pair         string
	Bids         []OrderBookLevel // descending by price
	Asks         []OrderBookLevel // ascending by price
	BestBid      money.Dec
	BestAsk      money.Dec
	Spread       money.Dec
	SpreadPct    money.Dec
	TotalBidLiq  money.Dec
	TotalAskLiq  money.Dec
	Timestamp    time.Time
}

// Valid reports whether the book satisfies the bestAsk >= bestBid and
// monotonic-cumulative invariants.
func (ob OrderBook) Valid() bool {
	if ob.BestAsk.LessThan(ob.BestBid) {
		return false
	}
	if !monotonic(ob.Bids) || !monotonic(ob.Asks) {
		return false
	}
	return true
}

func monotonic(levels []OrderBookLevel) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i].CumulativeQty.LessThan(levels[i-1].CumulativeQty) {
			return false
		}
		if levels[i].CumulativeValue.LessThan(levels[i-1].CumulativeValue) {
			return false
		}
	}
	return true
}

// BuildOrderBook fills derived fields (best bid/ask, spread, cumulative
// totals) from raw level lists. Bids must already be sorted descending and
// asks ascending by price.
func BuildOrderBook(exchange, pair string, bids, asks []OrderBookLevel, ts time.Time) OrderBook {
	cum := func(levels []OrderBookLevel) []OrderBookLevel {
		out := make([]OrderBookLevel, len(levels))
		qty, val := money.Zero, money.Zero
		for i, l := range levels {
			qty = qty.Add(l.Qty)
			val = val.Add(l.Qty.Mul(l.Price))
			out[i] = OrderBookLevel{Price: l.Price, Qty: l.Qty, CumulativeQty: qty, CumulativeValue: val}
		}
		return out
	}

	b := cum(bids)
	a := cum(asks)

	ob := OrderBook{Exchange: exchange, Pair: pair, Bids: b, Asks: a, Timestamp: ts}
	if len(b) > 0 {
		ob.BestBid = b[0].Price
		ob.TotalBidLiq = b[len(b)-1].CumulativeValue
	}
	if len(a) > 0 {
		ob.BestAsk = a[0].Price
		ob.TotalAskLiq = a[len(a)-1].CumulativeValue
	}
	if !ob.BestBid.IsZero() || !ob.BestAsk.IsZero() {
		ob.Spread = ob.BestAsk.Sub(ob.BestBid)
		mid := ob.BestBid.Add(ob.BestAsk).Div(money.D(2))
		if !mid.IsZero() {
			ob.SpreadPct = ob.Spread.Div(mid)
		}
	}
	return ob
}
