// Package ports declares the external collaborator interfaces the core
// consumes. Implementations — exchange/DEX clients,
// order submission, persistent stores, flash-loan protocols — live outside
// this module's core; internal/adapters, internal/cache, and
// internal/persistence provide reference/test implementations only.
package ports

import (
	"context"
	"time"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// PriceFilter narrows a subscription to a symbol and/or exchange; a zero
// value subscribes to everything.
type PriceFilter struct {
	Symbol   string
	Exchange string
}

// OrderSide is buy or sell.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OrderType is the execution style requested of a venue.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderResult is the outcome of a placeOrder call.
type OrderResult struct {
	OrderID      string
	FilledSize   money.Dec
	FilledPrice  money.Dec
	Status       string
	Err          error
}

// FeeSchedule is a venue's trading/withdrawal/deposit/network fee table
// for one asset.
type FeeSchedule struct {
	TradingFeePct   money.Dec
	WithdrawalFee   money.Dec
	DepositFee      money.Dec
	NetworkFee      money.Dec
	TransferTimeMs  int64
}

// ExchangeClient is the port through which the core subscribes to market
// data and requests order execution. The core never blocks a detector or
// classifier on it directly — enrichment needing I/O happens asynchronously
// with a deadline.
type ExchangeClient interface {
	SubscribePrices(ctx context.Context, filter PriceFilter) (<-chan events.PriceTick, error)
	SubscribeOrderBooks(ctx context.Context, filter PriceFilter) (<-chan events.OrderBook, error)
	PlaceOrder(ctx context.Context, venue string, side OrderSide, size money.Dec, typ OrderType, price *money.Dec) (OrderResult, error)
	CancelOrder(ctx context.Context, venue, orderID string) error
	Withdraw(ctx context.Context, asset string, amount money.Dec, to string) error
	Deposit(ctx context.Context, asset string, amount money.Dec) error
	Fees(ctx context.Context, venue, asset string) (FeeSchedule, error)
}

// FlashLoanParams describes a requested flash-loan-financed execution.
type FlashLoanParams struct {
	Provider string
	Asset    string
	Amount   money.Dec
}

// FlashLoanCallback receives the borrowed amount and must return the
// post-arbitrage balance to repay the loan plus fee.
type FlashLoanCallback func(ctx context.Context, borrowed money.Dec) (money.Dec, error)

// FlashLoanProtocolPort is the optional on-chain flash-loan collaborator
// whose absence means no plan may require a flash loan.
type FlashLoanProtocolPort interface {
	BestProvider(ctx context.Context, asset string) (string, error)
	CalculateFee(ctx context.Context, provider, asset string, amount money.Dec) (money.Dec, error)
	Simulate(ctx context.Context, params FlashLoanParams) (bool, error)
	Execute(ctx context.Context, params FlashLoanParams, cb FlashLoanCallback) (OrderResult, error)
}

// DepegHistoryStore persists and queries past DepegEvents, used to
// override the severity-ladder reversion-time default with a historical
// median when present.
type DepegHistoryStore interface {
	Record(ctx context.Context, e events.DepegEvent) error
	RecentSimilar(ctx context.Context, e events.DepegEvent, k int) ([]events.DepegEvent, error)
	MedianReversionTime(ctx context.Context, asset string, magnitudeLow, magnitudeHigh money.Dec) (time.Duration, error)
	SuccessRate(ctx context.Context, asset string, magnitudeLow, magnitudeHigh money.Dec) (money.Dec, error)
}

// CorrelationHistoryStore is the optional seed/persist collaborator for
// CoinCorrelations.
type CorrelationHistoryStore interface {
	Seed(ctx context.Context, altcoin string) (events.CoinCorrelation, bool, error)
	Persist(ctx context.Context, c events.CoinCorrelation) error
}
