// Package planbuilder implements the Execution Plan Builder: method
// selection by size-vs-liquidity, proportional venue
// allocation, a square-root slippage model per step, a three-tranche exit
// strategy, and plan validation.
package planbuilder

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds plan-builder tunables.
type Config struct {
	MarketThresholdPct money.Dec // <5% of liquidity -> market
	TWAPThresholdPct   money.Dec // <20% of liquidity -> twap, else iceberg
	MinVenueAllocation money.Dec // skip allocations under 5% of total
	MaxExecutionTime   time.Duration
	SlippageTolerance  money.Dec
	StopLossPct        money.Dec
	PlanExpiry         time.Duration
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		MarketThresholdPct: money.D(0.05),
		TWAPThresholdPct:   money.D(0.20),
		MinVenueAllocation: money.D(0.05),
		MaxExecutionTime:   10 * time.Minute,
		SlippageTolerance:  money.D(0.01),
		StopLossPct:        money.D(0.02),
		PlanExpiry:         10 * time.Minute,
	}
}

// VenueLiquidity is one candidate venue's score and available liquidity
// for entry allocation.
type VenueLiquidity struct {
	Venue          string
	Score          money.Dec
	AvailableLiquidity money.Dec
	Price          money.Dec // last quoted price at this venue, for entry/exit venue ranking
}

// Builder constructs ExecutionPlans from an OpportunityClassification.
type Builder struct {
	cfg Config
}

// New creates a Builder.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Build produces an ExecutionPlan for opp, sized at positionSize and
// entered across venues ranked by liquidity score. symbol is carried onto
// the plan so monitoring can look up live prices for the right window.
func (b *Builder) Build(now time.Time, symbol string, opp events.OpportunityClassification, positionSize money.Dec, venues []VenueLiquidity, targetPrice, stopLossBasis money.Dec) events.ExecutionPlan {
	totalLiquidity := money.Zero
	for _, v := range venues {
		totalLiquidity = totalLiquidity.Add(v.AvailableLiquidity)
	}

	method := chooseMethod(positionSize, totalLiquidity, b.cfg)
	entry := b.buildEntry(method, positionSize, venues, stopLossBasis)
	exit := b.buildExit(targetPrice, stopLossBasis)

	expected := b.projectOutcomes(opp, positionSize, entry.ExpectedSlippage)

	plan := events.ExecutionPlan{
		ID:               uuid.NewString(),
		Symbol:           symbol,
		Opportunity:      opp,
		PositionSizing:   positionSize,
		EntryStrategy:    entry,
		ExitStrategy:     exit,
		RiskManagement:   "stop-loss at " + stopLossDesc(b.cfg.StopLossPct),
		ExpectedOutcomes: expected,
		Confidence:       opp.ConfidenceLevel,
		CreatedAt:        now,
		ExpiresAt:        now.Add(b.cfg.PlanExpiry),
	}
	return plan
}

func stopLossDesc(pct money.Dec) string {
	return money.Pct(pct).String() + "%"
}

func chooseMethod(size, totalLiquidity money.Dec, cfg Config) events.EntryMethod {
	if totalLiquidity.IsZero() {
		return events.MethodIceberg
	}
	frac := size.Div(totalLiquidity)
	switch {
	case frac.LessThan(cfg.MarketThresholdPct):
		return events.MethodMarket
	case frac.LessThan(cfg.TWAPThresholdPct):
		return events.MethodTWAP
	default:
		return events.MethodIceberg
	}
}

func (b *Builder) buildEntry(method events.EntryMethod, totalSize money.Dec, venues []VenueLiquidity, entryPrice money.Dec) events.EntryStrategy {
	ranked := append([]VenueLiquidity(nil), venues...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score.GreaterThan(ranked[j].Score) })

	scoreSum := money.Zero
	for _, v := range ranked {
		scoreSum = scoreSum.Add(v.Score)
	}

	var steps []events.ExecutionStep
	var venueNames []string
	weightedSlippage := money.Zero
	stepNo := 1
	var elapsedMs int64

	if scoreSum.IsPositive() {
		for _, v := range ranked {
			fraction := v.Score.Div(scoreSum)
			if fraction.LessThan(b.cfg.MinVenueAllocation) {
				continue
			}
			size := totalSize.Mul(fraction)
			slippage := sqrtSlippageModel(size, v.AvailableLiquidity)
			price := entryPrice

			steps = append(steps, events.ExecutionStep{
				StepNo:           stepNo,
				Venue:            v.Venue,
				Action:           events.ActionBuy,
				Size:             size,
				Price:            &price,
				TimingMs:         elapsedMs,
				OrderType:        string(method),
				ExpectedSlippage: slippage,
				Status:           events.StepPending,
			})
			venueNames = append(venueNames, v.Venue)
			weightedSlippage = weightedSlippage.Add(slippage.Mul(fraction))
			stepNo++
			elapsedMs += stepTimingMs(method)
		}
	}

	return events.EntryStrategy{
		Method:           method,
		Venues:           venueNames,
		TotalSize:        totalSize,
		Steps:            steps,
		ExpectedSlippage: weightedSlippage,
		ExecutionTimeMs:  elapsedMs,
	}
}

func stepTimingMs(method events.EntryMethod) int64 {
	switch method {
	case events.MethodMarket:
		return 500
	case events.MethodTWAP:
		return 60_000
	default:
		return 30_000
	}
}

// sqrtSlippageModel estimates expected slippage for one venue's allocation
// as sqrt(size/liquidity).
func sqrtSlippageModel(size, liquidity money.Dec) money.Dec {
	if liquidity.IsZero() {
		return money.One
	}
	ratio, _ := size.Div(liquidity).Float64()
	if ratio < 0 {
		ratio = 0
	}
	return money.D(math.Sqrt(ratio))
}

func (b *Builder) buildExit(targetPrice, stopLossBasis money.Dec) events.ExitStrategy {
	stopLoss := stopLossBasis.Mul(money.One.Sub(b.cfg.StopLossPct))
	tranche := func(pctOfTarget, portion money.Dec) events.PartialExit {
		price := stopLossBasis.Add(targetPrice.Sub(stopLossBasis).Mul(pctOfTarget))
		return events.PartialExit{Pct: portion, Price: price}
	}
	return events.ExitStrategy{
		Method:        events.MethodLimit,
		TargetPrice:   targetPrice,
		StopLossPrice: stopLoss,
		PartialExits: []events.PartialExit{
			tranche(money.D(0.6), money.D(0.3)),
			tranche(money.D(0.8), money.D(0.4)),
			tranche(money.D(1.0), money.D(0.3)),
		},
		MaxHoldMs: int64(4 * time.Hour / time.Millisecond),
	}
}

func (b *Builder) projectOutcomes(opp events.OpportunityClassification, size, slippage money.Dec) events.ExpectedOutcomes {
	base := opp.ExpectedProfitPct.Sub(slippage)
	scenario := func(mult money.Dec) events.OutcomeScenario {
		pct := base.Mul(mult)
		return events.OutcomeScenario{ProfitPct: pct, ProfitUsd: pct.Mul(size)}
	}
	return events.ExpectedOutcomes{
		Best:       scenario(money.D(1.5)),
		MostLikely: scenario(money.D(1.0)),
		Worst:      scenario(money.D(-1.0)),
	}
}

// Validate rejects plans whose total time exceeds maxExecutionTime,
// expected slippage exceeds tolerance, or most-likely net profit is
// non-positive.
func (b *Builder) Validate(plan events.ExecutionPlan) events.ValidationVerdict {
	var reasons []string

	if time.Duration(plan.EntryStrategy.ExecutionTimeMs)*time.Millisecond > b.cfg.MaxExecutionTime {
		reasons = append(reasons, "execution time exceeds maximum")
	}
	if plan.EntryStrategy.ExpectedSlippage.GreaterThan(b.cfg.SlippageTolerance) {
		reasons = append(reasons, "expected slippage exceeds tolerance")
	}
	if !plan.ExpectedOutcomes.MostLikely.ProfitUsd.IsPositive() {
		reasons = append(reasons, "most-likely net profit is non-positive")
	}

	return events.ValidationVerdict{Accepted: len(reasons) == 0, Reasons: reasons}
}
