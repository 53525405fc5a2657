// Package classifier implements the Opportunity Classifier: a single
// classify entry point producing a scored,
// risk-adjusted, sized, and venue-ranked OpportunityClassification from a
// raw detector event.
package classifier

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds classifier tunables.
type Config struct {
	WeightProfit       money.Dec // 0.30
	WeightLiquidity    money.Dec // 0.20
	WeightHistorical   money.Dec // 0.20
	WeightReversion    money.Dec // 0.15
	WeightMarket       money.Dec // 0.15

	RiskToleranceFactor money.Dec

	FractionalKelly money.Dec
	VolAdjCap       money.Dec
	LiquidityCapPct money.Dec // fraction of venue liquidity
	RiskCapPct      money.Dec // fraction of capital at extreme risk
	AbsoluteCap     money.Dec

	Expiry time.Duration
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		WeightProfit:        money.D(0.30),
		WeightLiquidity:     money.D(0.20),
		WeightHistorical:    money.D(0.20),
		WeightReversion:     money.D(0.15),
		WeightMarket:        money.D(0.15),
		RiskToleranceFactor: money.D(0.8),
		FractionalKelly:     money.D(0.5),
		VolAdjCap:           money.D(0.25),
		LiquidityCapPct:     money.D(0.1),
		RiskCapPct:          money.D(0.05),
		AbsoluteCap:         money.D(50_000),
		Expiry:              10 * time.Minute,
	}
}

// Input bundles the raw signal a detector emits plus the context needed to
// score it: sub-scores are computed from these fields rather than from the
// typed detector event directly, so one classifier serves every detector
// family.
type Input struct {
	SourceKind        events.SourceKind
	SourceEventID     string
	ExpectedProfitPct money.Dec
	ExpectedProfitUsd money.Dec
	Severity          money.Dec // 0-1, higher = more severe/risky
	Volatility        money.Dec // 0-1
	LiquidityUsd      money.Dec
	HistoricalSuccess money.Dec // 0-1, from history port or prior
	ReversionTimeMs   int64
	MaxReversionTimeMs int64 // normalizer for reversion speed sub-score
	MarketConditionScore money.Dec // 0-100, pre-computed externally
	Confidence        money.Dec // 0-1
	EntryVenues       []events.VenueScore
	ExitVenues        []events.VenueScore
	OptimalEntryPrice money.Dec
	OptimalExitPrice  money.Dec

	// Kelly inputs.
	WinProbability money.Dec // p
	WinLossRatio   money.Dec // b
	Capital        money.Dec
}

// Portfolio is the optional position-sizing context passed alongside a
// detector event.
type Portfolio struct {
	AvailableCapital money.Dec
}

// Classifier scores, risk-adjusts, and sizes raw detector signals.
type Classifier struct {
	cfg Config
}

// New creates a Classifier.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify is the single entry point.
func (c *Classifier) Classify(now time.Time, in Input, portfolio *Portfolio) events.OpportunityClassification {
	profitScore := money.Clamp(money.Pct(in.ExpectedProfitPct).Mul(money.D(10)), money.Zero, money.D(100))
	liquidityScore := money.Clamp(in.LiquidityUsd.Div(money.D(1_000_000)).Mul(money.D(100)), money.Zero, money.D(100))
	historicalScore := money.Clamp(in.HistoricalSuccess.Mul(money.D(100)), money.Zero, money.D(100))

	reversionScore := money.D(50)
	if in.MaxReversionTimeMs > 0 {
		frac := money.D(1.0 - float64(in.ReversionTimeMs)/float64(in.MaxReversionTimeMs))
		reversionScore = money.Clamp(frac.Mul(money.D(100)), money.Zero, money.D(100))
	}
	marketScore := money.Clamp(in.MarketConditionScore, money.Zero, money.D(100))

	overall := profitScore.Mul(c.cfg.WeightProfit).
		Add(liquidityScore.Mul(c.cfg.WeightLiquidity)).
		Add(historicalScore.Mul(c.cfg.WeightHistorical)).
		Add(reversionScore.Mul(c.cfg.WeightReversion)).
		Add(marketScore.Mul(c.cfg.WeightMarket))

	invLiquidity := money.One.Sub(money.Clamp(in.LiquidityUsd.Div(money.D(1_000_000)), money.Zero, money.One))
	riskFactor := money.Clamp(
		in.Severity.Mul(money.D(0.4)).Add(in.Volatility.Mul(money.D(0.3))).Add(invLiquidity.Mul(money.D(0.3))),
		money.Zero, money.One,
	)
	riskAdjusted := overall.Mul(money.One.Sub(riskFactor.Mul(money.D(0.5))))

	riskLevel := riskLevelFor(riskFactor)
	priority := overall.Mul(c.cfg.RiskToleranceFactor)

	capital := money.D(10_000)
	if portfolio != nil && portfolio.AvailableCapital.IsPositive() {
		capital = portfolio.AvailableCapital
	}
	positionSize := c.recommendPositionSize(in, capital)
	leverage := leverageFor(riskLevel).Mul(in.Confidence)

	entryVenues := topN(in.EntryVenues, 3)
	exitVenues := topN(in.ExitVenues, 3)

	return events.OpportunityClassification{
		ID:                       uuid.NewString(),
		SourceKind:               in.SourceKind,
		SourceEventID:            in.SourceEventID,
		OpportunityScore:         overall,
		RiskAdjustedScore:        riskAdjusted,
		ExpectedProfitPct:        in.ExpectedProfitPct,
		ExpectedProfitUsd:        in.ExpectedProfitUsd,
		EstimatedReversionTimeMs: in.ReversionTimeMs,
		SuccessProbability:       in.HistoricalSuccess,
		ConfidenceLevel:          in.Confidence,
		RiskLevel:                riskLevel,
		Priority:                 priority,
		BestEntryVenues:          entryVenues,
		BestExitVenues:           exitVenues,
		RecommendedPositionSize:  positionSize,
		RecommendedLeverage:      leverage,
		OptimalEntryPrice:        in.OptimalEntryPrice,
		OptimalExitPrice:         in.OptimalExitPrice,
		ClassifiedAt:             now,
		ExpiresAt:                now.Add(c.cfg.Expiry),
	}
}

func riskLevelFor(riskFactor money.Dec) events.RiskLevel {
	switch {
	case riskFactor.GreaterThanOrEqual(money.D(0.75)):
		return events.RiskExtreme
	case riskFactor.GreaterThanOrEqual(money.D(0.5)):
		return events.RiskHigh
	case riskFactor.GreaterThanOrEqual(money.D(0.25)):
		return events.RiskMedium
	default:
		return events.RiskLow
	}
}

func leverageFor(level events.RiskLevel) money.Dec {
	switch level {
	case events.RiskLow:
		return money.D(8)
	case events.RiskMedium:
		return money.D(5)
	case events.RiskHigh:
		return money.D(3)
	default:
		return money.D(2)
	}
}

// recommendPositionSize implements the min(Kelly, volAdj, liquidityCap,
// riskCap, absoluteCap) sizing rule.
func (c *Classifier) recommendPositionSize(in Input, capital money.Dec) money.Dec {
	p := in.WinProbability
	b := in.WinLossRatio
	q := money.One.Sub(p)

	kellyRaw := money.Zero
	if b.IsPositive() {
		kellyRaw = money.Clamp(b.Mul(p).Sub(q).Div(b), money.Zero, money.D(0.5))
	}
	kellyF := c.cfg.FractionalKelly.Mul(kellyRaw)
	kellySize := kellyF.Mul(capital)

	volAdj := c.cfg.VolAdjCap.Mul(capital)
	liquidityCap := in.LiquidityUsd.Mul(c.cfg.LiquidityCapPct)
	riskCap := capital.Mul(c.cfg.RiskCapPct)

	size := money.Min(kellySize, volAdj)
	size = money.Min(size, liquidityCap)
	size = money.Min(size, riskCap)
	size = money.Min(size, c.cfg.AbsoluteCap)
	return money.Max(size, money.Zero)
}

func topN(venues []events.VenueScore, n int) []events.VenueScore {
	out := append([]events.VenueScore(nil), venues...)
	sort.Slice(out, func(i, j int) bool { return out[i].Score.GreaterThan(out[j].Score) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RankEntryVenues scores venues for entry: priceImprovement*0.7 +
// liquidity*0.3.
func RankEntryVenues(priceImprovement, liquidity map[string]money.Dec) []events.VenueScore {
	return rank(priceImprovement, liquidity, money.D(0.7), money.D(0.3))
}

// RankExitVenues scores venues for exit: pegProximity*0.7 + liquidity*0.3.
func RankExitVenues(pegProximity, liquidity map[string]money.Dec) []events.VenueScore {
	return rank(pegProximity, liquidity, money.D(0.7), money.D(0.3))
}

func rank(primary, liquidity map[string]money.Dec, wPrimary, wLiquidity money.Dec) []events.VenueScore {
	out := make([]events.VenueScore, 0, len(primary))
	for venue, p := range primary {
		l := liquidity[venue]
		score := p.Mul(wPrimary).Add(l.Mul(wLiquidity))
		out = append(out, events.VenueScore{Venue: venue, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score.GreaterThan(out[j].Score) })
	return out
}
