// Package depeg implements the Depeg Detector: a per-stablecoin state
// machine that tracks valid venue ticks, classifies deviation severity by
// a threshold ladder, and runs active DepegEvents through the
// active/worsening/resolved/expired status DAG.
package depeg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/engerr"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

// Thresholds is the severity ladder's deviation cutoffs.
type Thresholds struct {
	Minor    money.Dec // default 5 bps
	Moderate money.Dec // default 20 bps
	Severe   money.Dec // default 1%
	Extreme  money.Dec // default 5%
}

// DefaultThresholds returns the default ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Minor:    money.D(0.0005),
		Moderate: money.D(0.0020),
		Severe:   money.D(0.01),
		Extreme:  money.D(0.05),
	}
}

// ReversionLadderMs maps severity to the default estimatedReversionTimeMs,
// used absent a history port override.
var ReversionLadderMs = map[events.DepegSeverity]int64{
	events.SeverityMinor:    int64(30 * time.Minute / time.Millisecond),
	events.SeverityModerate: int64(2 * time.Hour / time.Millisecond),
	events.SeveritySevere:   int64(12 * time.Hour / time.Millisecond),
	events.SeverityExtreme:  int64(48 * time.Hour / time.Millisecond),
}

// Config holds per-stablecoin detector tunables.
type Config struct {
	PegValue              money.Dec
	MinExchangesRequired  int       // default 2
	MinLiquidityRequired  money.Dec
	MaxPriceAgeMs         int64
	Thresholds            Thresholds
}

// Detector owns the depeg state machine for one stablecoin.
type Detector struct {
	stablecoin string
	cfg        Config
	clk        clock.Clock
	history    ports.DepegHistoryStore
	log        zerolog.Logger

	ticks  map[string]events.PriceTick // by exchange
	active *events.DepegEvent
}

// New creates a Detector for one stablecoin. history may be nil.
func New(stablecoin string, cfg Config, clk clock.Clock, history ports.DepegHistoryStore) *Detector {
	return &Detector{
		stablecoin: stablecoin,
		cfg:        cfg,
		clk:        clk,
		history:    history,
		log:        log.With().Str("component", "depeg_detector").Str("stablecoin", stablecoin).Logger(),
		ticks:      make(map[string]events.PriceTick),
	}
}

// Observe records a new tick for a venue.
func (d *Detector) Observe(t events.PriceTick) {
	d.ticks[t.Exchange] = t
}

// validTicks returns ticks no older than MaxPriceAgeMs as of now.
func (d *Detector) validTicks(now time.Time) []events.PriceTick {
	maxAge := time.Duration(d.cfg.MaxPriceAgeMs) * time.Millisecond
	out := make([]events.PriceTick, 0, len(d.ticks))
	for ex, t := range d.ticks {
		if now.Sub(t.Timestamp) <= maxAge {
			out = append(out, t)
		} else {
			delete(d.ticks, ex)
		}
	}
	return out
}

// Evaluate runs one scheduler-tick evaluation of the detector's state
// machine and returns the active event's current snapshot, if any changed
// or exists.
func (d *Detector) Evaluate(ctx context.Context) (*events.DepegEvent, error) {
	now := d.clk.Now()
	valid := d.validTicks(now)

	liqSum := money.Zero
	for _, t := range valid {
		liqSum = liqSum.Add(t.Liquidity)
	}

	if len(valid) < d.cfg.MinExchangesRequired || liqSum.LessThan(d.cfg.MinLiquidityRequired) {
		if d.active != nil && len(valid) < d.cfg.MinExchangesRequired {
			// Edge case: insufficient venues for longer than maxPriceAgeMs expires the event.
			d.expireIfStale(now)
		}
		if d.active == nil {
			return nil, engerr.WithReasons(engerr.KindInsufficientData, "insufficient venues or liquidity for depeg evaluation")
		}
		snap := d.active.Snapshot()
		return &snap, nil
	}

	prices := make([]money.Dec, len(valid))
	for i, t := range valid {
		prices[i] = t.Price
	}
	avgPrice := money.Mean(prices)
	deviation := money.Abs(avgPrice.Sub(d.cfg.PegValue)).Div(d.cfg.PegValue)

	if deviation.LessThan(d.cfg.Thresholds.Minor) {
		if d.active != nil {
			d.resolve(now)
			snap := d.active.Snapshot()
			d.active = nil
			return &snap, nil
		}
		return nil, nil
	}

	direction := events.Discount
	if avgPrice.GreaterThan(d.cfg.PegValue) {
		direction = events.Premium
	}
	severity := classifySeverity(deviation, d.cfg.Thresholds)

	if d.active == nil {
		d.create(ctx, now, avgPrice, deviation, direction, severity, valid, liqSum)
		snap := d.active.Snapshot()
		return &snap, nil
	}

	oldMagnitude := d.active.Magnitude
	d.active.AvgPrice = avgPrice
	d.active.Magnitude = deviation
	d.active.Direction = direction
	d.active.Severity = severity
	d.active.Exchanges = valid
	d.active.LiquidityScore = liqSum

	if deviation.GreaterThan(oldMagnitude) {
		if d.active.Status.CanTransition(events.DepegWorsening, deviation, oldMagnitude) {
			d.active.Status = events.DepegWorsening
		}
		if deviation.GreaterThan(d.active.MaxDeviation) {
			d.active.MaxDeviation = deviation
		}
	} else if d.active.Status == events.DepegWorsening {
		if d.active.Status.CanTransition(events.DepegActive, deviation, oldMagnitude) {
			d.active.Status = events.DepegActive
		}
	}

	snap := d.active.Snapshot()
	return &snap, nil
}

func classifySeverity(deviation money.Dec, th Thresholds) events.DepegSeverity {
	switch {
	case deviation.GreaterThanOrEqual(th.Extreme):
		return events.SeverityExtreme
	case deviation.GreaterThanOrEqual(th.Severe):
		return events.SeveritySevere
	case deviation.GreaterThanOrEqual(th.Moderate):
		return events.SeverityModerate
	default:
		return events.SeverityMinor
	}
}

func (d *Detector) create(ctx context.Context, now time.Time, avgPrice, deviation money.Dec, direction events.DepegDirection, severity events.DepegSeverity, valid []events.PriceTick, liq money.Dec) {
	reversionMs := ReversionLadderMs[severity]
	if d.history != nil {
		asset := d.stablecoin
		lo, hi := ladderBounds(severity, d.cfg.Thresholds)
		if median, err := d.history.MedianReversionTime(ctx, asset, lo, hi); err == nil && median > 0 {
			reversionMs = int64(median / time.Millisecond)
		}
	}
	d.active = &events.DepegEvent{
		ID:                       uuid.NewString(),
		Stablecoin:               d.stablecoin,
		PegValue:                 d.cfg.PegValue,
		AvgPrice:                 avgPrice,
		Magnitude:                deviation,
		Direction:                direction,
		Severity:                 severity,
		Exchanges:                valid,
		LiquidityScore:           liq,
		EstimatedReversionTimeMs: reversionMs,
		Status:                   events.DepegActive,
		StartTime:                now,
		MaxDeviation:             deviation,
	}
	d.log.Info().Str("severity", string(severity)).Str("direction", string(direction)).Msg("depeg event opened")
}

func ladderBounds(sev events.DepegSeverity, th Thresholds) (money.Dec, money.Dec) {
	switch sev {
	case events.SeverityMinor:
		return th.Minor, th.Moderate
	case events.SeverityModerate:
		return th.Moderate, th.Severe
	case events.SeveritySevere:
		return th.Severe, th.Extreme
	default:
		return th.Extreme, money.D(1.0)
	}
}

func (d *Detector) resolve(now time.Time) {
	if !d.active.Status.CanTransition(events.DepegResolved, d.active.Magnitude, d.active.Magnitude) {
		return
	}
	end := now
	d.active.EndTime = &end
	d.active.ActualReversionTimeMs = now.Sub(d.active.StartTime).Milliseconds()
	d.active.Status = events.DepegResolved
	d.log.Info().Int64("actual_reversion_ms", d.active.ActualReversionTimeMs).Msg("depeg event resolved")
}

func (d *Detector) expireIfStale(now time.Time) {
	maxAge := time.Duration(d.cfg.MaxPriceAgeMs) * time.Millisecond
	if d.active == nil {
		return
	}
	lastSeen := d.active.StartTime
	for _, t := range d.active.Exchanges {
		if t.Timestamp.After(lastSeen) {
			lastSeen = t.Timestamp
		}
	}
	if now.Sub(lastSeen) > maxAge && d.active.Status.CanTransition(events.DepegExpired, d.active.Magnitude, d.active.Magnitude) {
		end := now
		d.active.EndTime = &end
		d.active.Status = events.DepegExpired
		d.log.Warn().Msg("depeg event expired: insufficient venues")
	}
}

// RecordToHistory hands a terminal event to the history port, if present.
func (d *Detector) RecordToHistory(ctx context.Context, e events.DepegEvent) error {
	if d.history == nil {
		return nil
	}
	return d.history.Record(ctx, e)
}
