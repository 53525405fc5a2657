// Package liquidity implements the Liquidity & Slippage Analyzer: an
// order-book liquidity score with weighted
// sub-scores, and a slippage walk that produces VWAP/slippage/impact/
// confidence for a hypothetical order size.
package liquidity

import (
	"math"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds analyzer tunables.
type Config struct {
	WeightDepth     money.Dec // 0.30
	WeightSpread    money.Dec // 0.25
	WeightVolume    money.Dec // 0.20
	WeightStability money.Dec // 0.15
	WeightRecovery  money.Dec // 0.10

	DepthSaturation  money.Dec // $1M
	VolumeSaturation money.Dec // $100M
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		WeightDepth:      money.D(0.30),
		WeightSpread:     money.D(0.25),
		WeightVolume:     money.D(0.20),
		WeightStability:  money.D(0.15),
		WeightRecovery:   money.D(0.10),
		DepthSaturation:  money.D(1_000_000),
		VolumeSaturation: money.D(100_000_000),
	}
}

// PriceImpactModel selects the price-impact curve used by WalkSlippage.
type PriceImpactModel int

const (
	ImpactLinear PriceImpactModel = iota
	ImpactSquareRoot
	ImpactLogarithmic
)

// Analyzer computes liquidity scores and slippage walks from order books.
type Analyzer struct {
	cfg Config
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Score computes a venue's LiquidityScore from an order book, its 24h
// volume, a historical-liquidity series (for stability), and a
// venue-specific recovery heuristic score in [0,1].
func (a *Analyzer) Score(ob events.OrderBook, volume24h money.Dec, historicalLiquidity []money.Dec, recoveryScore money.Dec) money.Dec {
	depth := money.Clamp(ob.TotalBidLiq.Add(ob.TotalAskLiq).Div(a.cfg.DepthSaturation), money.Zero, money.One)

	spreadScore := money.One
	if !ob.SpreadPct.IsZero() {
		spreadScore = money.Clamp(money.One.Sub(ob.SpreadPct.Mul(money.D(100))), money.Zero, money.One)
	}

	volumeScore := money.Clamp(volume24h.Div(a.cfg.VolumeSaturation), money.Zero, money.One)

	stability := money.One
	if len(historicalLiquidity) > 1 {
		mean := money.Mean(historicalLiquidity)
		if !mean.IsZero() {
			cv := money.StdDev(historicalLiquidity).Div(mean)
			stability = money.Clamp(money.One.Sub(cv), money.Zero, money.One)
		}
	}

	recovery := money.Clamp(recoveryScore, money.Zero, money.One)

	weighted := depth.Mul(a.cfg.WeightDepth).
		Add(spreadScore.Mul(a.cfg.WeightSpread)).
		Add(volumeScore.Mul(a.cfg.WeightVolume)).
		Add(stability.Mul(a.cfg.WeightStability)).
		Add(recovery.Mul(a.cfg.WeightRecovery))

	return weighted.Mul(money.D(100))
}

// SlippageResult is the output of a WalkSlippage call.
type SlippageResult struct {
	VWAP           money.Dec
	SlippagePct    money.Dec
	PriceImpact    money.Dec
	Confidence     money.Dec
	SizeFilled     money.Dec
	FullyFilled    bool
}

// WalkSlippage consumes order-book levels (asks for a buy, bids for a
// sell — caller passes the correct side) up to size, computing VWAP and
// slippage against marketPrice, plus a modeled price-impact figure.
func (a *Analyzer) WalkSlippage(levels []events.OrderBookLevel, size, marketPrice money.Dec, model PriceImpactModel) SlippageResult {
	remaining := size
	valueSum := money.Zero
	sizeSum := money.Zero

	for _, lvl := range levels {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
		take := money.Min(remaining, lvl.Qty)
		valueSum = valueSum.Add(take.Mul(lvl.Price))
		sizeSum = sizeSum.Add(take)
		remaining = remaining.Sub(take)
	}

	if sizeSum.IsZero() {
		return SlippageResult{}
	}

	vwap := valueSum.Div(sizeSum)
	slippage := money.Zero
	if !marketPrice.IsZero() {
		slippage = money.Abs(vwap.Sub(marketPrice)).Div(marketPrice)
	}

	totalLiquidity := money.Zero
	for _, lvl := range levels {
		totalLiquidity = totalLiquidity.Add(lvl.Qty)
	}
	impact := priceImpact(size, totalLiquidity, model)

	confidence := money.One
	if size.IsPositive() {
		confidence = money.Clamp(totalLiquidity.Div(size), money.Zero, money.One)
	}

	return SlippageResult{
		VWAP:        vwap,
		SlippagePct: slippage,
		PriceImpact: impact,
		Confidence:  confidence,
		SizeFilled:  sizeSum,
		FullyFilled: remaining.LessThanOrEqual(money.Zero),
	}
}

func priceImpact(size, totalLiquidity money.Dec, model PriceImpactModel) money.Dec {
	if totalLiquidity.IsZero() {
		return money.One
	}
	ratio, _ := size.Div(totalLiquidity).Float64()
	if ratio < 0 {
		ratio = 0
	}
	switch model {
	case ImpactSquareRoot:
		return money.D(math.Sqrt(ratio))
	case ImpactLogarithmic:
		if ratio <= 0 {
			return money.Zero
		}
		return money.D(math.Log1p(ratio))
	default:
		return money.D(ratio)
	}
}
