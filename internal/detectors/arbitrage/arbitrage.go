// Package arbitrage implements the Cross-Exchange Arbitrage Detector:
// pairwise venue comparison for a given asset,
// fee/transfer-time accounting, risk decomposition, and threshold
// filtering.
package arbitrage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

// Quote is one venue's current price/liquidity for an asset, enough to
// build a candidate pairing.
type Quote struct {
	Venue     string
	Price     money.Dec
	Liquidity money.Dec
	IsDEX     bool
	GasEstimate money.Dec // DEX variants only
}

// Config holds filter tunables.
type Config struct {
	MinProfitThreshold money.Dec
	MaxExecutionTime   time.Duration
	MaxOverallRisk     money.Dec
	OpportunityTTL     time.Duration

	WeightPriceMovement money.Dec
	WeightLiquidity     money.Dec
	WeightExecution     money.Dec
	WeightCounterparty  money.Dec
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		MinProfitThreshold:  money.D(0.003),
		MaxExecutionTime:    15 * time.Minute,
		MaxOverallRisk:      money.D(0.6),
		OpportunityTTL:      5 * time.Minute,
		WeightPriceMovement: money.D(0.3),
		WeightLiquidity:     money.D(0.25),
		WeightExecution:     money.D(0.25),
		WeightCounterparty:  money.D(0.2),
	}
}

// Detector pairwise-compares venue quotes for an asset.
type Detector struct {
	cfg     Config
	fees    ports.ExchangeClient
	log     zerolog.Logger
}

// New creates a Detector. fees supplies per-venue fee schedules; it may be
// nil, in which case zero fees are assumed (useful in tests).
func New(cfg Config, fees ports.ExchangeClient) *Detector {
	return &Detector{cfg: cfg, fees: fees, log: log.With().Str("component", "arbitrage_detector").Logger()}
}

// FeesFor fetches a venue's fee schedule through the configured
// ExchangeClient, returning a zero schedule if none is wired (test mode).
func (d *Detector) FeesFor(ctx context.Context, venue, asset string) ports.FeeSchedule {
	if d.fees == nil {
		return ports.FeeSchedule{}
	}
	fs, err := d.fees.Fees(ctx, venue, asset)
	if err != nil {
		d.log.Warn().Err(err).Str("venue", venue).Msg("fee schedule lookup failed")
		return ports.FeeSchedule{}
	}
	return fs
}

// Evaluate compares buy against sell for asset and returns a candidate
// opportunity, or nil if it doesn't clear the filters.
func (d *Detector) Evaluate(asset string, buy, sell Quote, buyFees, sellFees ports.FeeSchedule, now time.Time) *events.ArbitrageOpportunity {
	if buy.Price.IsZero() || sell.Price.LessThanOrEqual(buy.Price) {
		return nil
	}

	diffPct := sell.Price.Sub(buy.Price).Div(buy.Price)

	maxTradeSize := money.Min(buy.Liquidity, sell.Liquidity).Mul(money.D(0.5))

	costs := events.TransactionCosts{
		BuyFee:        buy.Price.Mul(maxTradeSize).Mul(buyFees.TradingFeePct),
		SellFee:       sell.Price.Mul(maxTradeSize).Mul(sellFees.TradingFeePct),
		WithdrawalFee: buyFees.WithdrawalFee,
		DepositFee:    sellFees.DepositFee,
		NetworkFee:    buyFees.NetworkFee,
	}
	if buy.IsDEX || sell.IsDEX {
		costs.NetworkFee = costs.NetworkFee.Add(buy.GasEstimate).Add(sell.GasEstimate)
	}
	costs.Total = costs.BuyFee.Add(costs.SellFee).Add(costs.WithdrawalFee).Add(costs.DepositFee).Add(costs.NetworkFee)

	grossProfit := sell.Price.Sub(buy.Price).Mul(maxTradeSize)
	netProfit := grossProfit.Sub(costs.Total)
	netProfitPct := money.Zero
	if !buy.Price.Mul(maxTradeSize).IsZero() {
		netProfitPct = netProfit.Div(buy.Price.Mul(maxTradeSize))
	}

	executionMs := buyFees.TransferTimeMs + sellFees.TransferTimeMs
	executionTime := time.Duration(executionMs) * time.Millisecond

	risk := d.buildRisk(diffPct, buy, sell)

	if netProfitPct.LessThan(d.cfg.MinProfitThreshold) || executionTime > d.cfg.MaxExecutionTime || risk.OverallRisk.GreaterThan(d.cfg.MaxOverallRisk) {
		return nil
	}

	confidence := money.Clamp(money.One.Sub(risk.OverallRisk), money.Zero, money.One)

	return &events.ArbitrageOpportunity{
		ID:                      uuid.NewString(),
		Asset:                   asset,
		BuyVenue:                buy.Venue,
		SellVenue:               sell.Venue,
		BuyPrice:                buy.Price,
		SellPrice:               sell.Price,
		DiffPct:                 diffPct,
		MaxTradeSize:            maxTradeSize,
		Costs:                   costs,
		NetProfit:               netProfit,
		NetProfitPct:            netProfitPct,
		ExecutionTimeEstimateMs: executionMs,
		Risk:                    risk,
		Confidence:              confidence,
		DetectedAt:              now,
		ExpiresAt:               now.Add(d.cfg.OpportunityTTL),
		IsDEX:                   buy.IsDEX || sell.IsDEX,
	}
}

func (d *Detector) buildRisk(diffPct money.Dec, buy, sell Quote) events.RiskFactors {
	priceMovementRisk := money.Clamp(money.Abs(diffPct).Mul(money.D(10)), money.Zero, money.One)
	minLiq := money.Min(buy.Liquidity, sell.Liquidity)
	liquidityRisk := money.One.Sub(money.Clamp(minLiq.Div(money.D(1_000_000)), money.Zero, money.One))
	executionRisk := money.D(0.3)
	if buy.IsDEX || sell.IsDEX {
		executionRisk = money.D(0.5)
	}
	counterpartyRisk := money.D(0.2)

	overall := priceMovementRisk.Mul(d.cfg.WeightPriceMovement).
		Add(liquidityRisk.Mul(d.cfg.WeightLiquidity)).
		Add(executionRisk.Mul(d.cfg.WeightExecution)).
		Add(counterpartyRisk.Mul(d.cfg.WeightCounterparty))

	return events.RiskFactors{
		PriceMovementRisk: priceMovementRisk,
		LiquidityRisk:     liquidityRisk,
		ExecutionRisk:     executionRisk,
		CounterpartyRisk:  counterpartyRisk,
		OverallRisk:       overall,
	}
}

// EvaluateAll pairwise-compares every quote against every other for the
// same asset, returning all candidates that clear the filters.
func (d *Detector) EvaluateAll(asset string, quotes []Quote, feesByVenue map[string]ports.FeeSchedule, now time.Time) []events.ArbitrageOpportunity {
	var out []events.ArbitrageOpportunity
	for i := range quotes {
		for j := range quotes {
			if i == j {
				continue
			}
			opp := d.Evaluate(asset, quotes[i], quotes[j], feesByVenue[quotes[i].Venue], feesByVenue[quotes[j].Venue], now)
			if opp != nil {
				out = append(out, *opp)
			}
		}
	}
	return out
}
