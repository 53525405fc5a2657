// Package exitengine implements the Exit Signal Engine: one engine per
// trade, running on a monitoring cadence,
// producing typed ExitSignals from a refreshed price/PnL snapshot with
// per-condition suppression across a monitoring cycle.
package exitengine

import (
	"sort"
	"time"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds exit-engine tunables.
type Config struct {
	MonitoringCadence time.Duration // default 5s
	TargetPct         money.Dec
	StopLossPct       money.Dec
	WarningTime       time.Duration
	VolatilityThreshold money.Dec
	EmergencyDrawdownPct money.Dec
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		MonitoringCadence:    5 * time.Second,
		TargetPct:            money.D(0.03),
		StopLossPct:          money.D(0.015),
		WarningTime:          5 * time.Minute,
		VolatilityThreshold:  money.D(0.05),
		EmergencyDrawdownPct: money.D(0.08),
	}
}

// Snapshot is the monitoring state refreshed each cadence.
type Snapshot struct {
	CurrentPrice      money.Dec
	PnL               money.Dec
	PnLPct            money.Dec
	TimeSinceEntry    time.Duration
	TimeRemaining     time.Duration // until maxHoldMs deadline
	ReversionProgress money.Dec
	Volatility        money.Dec
}

// Engine evaluates one trade's Snapshot stream into ExitSignals.
type Engine struct {
	cfg Config

	lastEmitted map[events.ExitSignalType]time.Time
}

// New creates an Engine for one trade.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, lastEmitted: make(map[events.ExitSignalType]time.Time)}
}

// tieredTargetExit returns the exit fraction for the highest tier of
// {0.6, 0.8, 1.0} that pnlPct/targetPct has reached, and false when no
// tier is reached.
func tieredTargetExit(pnlPct, targetPct money.Dec) (money.Dec, bool) {
	if targetPct.IsZero() {
		return money.Zero, false
	}
	progress := pnlPct.Div(targetPct)
	switch {
	case progress.GreaterThanOrEqual(money.D(1.0)):
		return money.D(1.0), true
	case progress.GreaterThanOrEqual(money.D(0.8)):
		return money.D(0.7), true
	case progress.GreaterThanOrEqual(money.D(0.6)):
		return money.D(0.3), true
	default:
		return money.Zero, false
	}
}

// Evaluate runs one monitoring cycle. Signals are
// returned in strength order; the supervisor decides which to honor.
// Repeated signals of the same type within one monitoring cycle are
// suppressed.
func (e *Engine) Evaluate(now time.Time, snap Snapshot) []events.ExitSignal {
	var out []events.ExitSignal
	emit := func(sig events.ExitSignal) {
		last, ok := e.lastEmitted[sig.Type]
		if ok && now.Sub(last) < e.cfg.MonitoringCadence {
			return
		}
		e.lastEmitted[sig.Type] = now
		out = append(out, sig)
	}

	if snap.PnLPct.LessThanOrEqual(money.Zero.Sub(e.cfg.EmergencyDrawdownPct)) {
		emit(events.ExitSignal{
			Type: events.ExitEmergency, Strength: money.D(1.0), ExitPct: money.D(1.0),
			Method: events.MethodMarket, Reason: "emergency drawdown breached",
			Urgency: events.UrgencyCritical, Timestamp: now,
		})
	}

	if snap.PnLPct.LessThanOrEqual(money.Zero.Sub(e.cfg.StopLossPct)) {
		emit(events.ExitSignal{
			Type: events.ExitStopLoss, Strength: money.D(0.9), ExitPct: money.D(1.0),
			Method: events.MethodMarket, Reason: "stop-loss threshold breached",
			Urgency: events.UrgencyHigh, Timestamp: now,
		})
	}

	if pct, ok := tieredTargetExit(snap.PnLPct, e.cfg.TargetPct); ok {
		emit(events.ExitSignal{
			Type: events.ExitTargetReached, Strength: pct, ExitPct: pct,
			Method: events.MethodLimit, Reason: "target progress tier reached",
			Urgency: events.UrgencyMedium, Timestamp: now,
		})
	}

	if snap.TimeRemaining <= e.cfg.WarningTime {
		emit(events.ExitSignal{
			Type: events.ExitTimeBased, Strength: money.D(0.6), ExitPct: money.D(0.5),
			Method: events.MethodLimit, Reason: "approaching max hold deadline",
			Urgency: events.UrgencyMedium, Timestamp: now,
		})
	}

	if snap.Volatility.GreaterThan(e.cfg.VolatilityThreshold) {
		emit(events.ExitSignal{
			Type: events.ExitMarketCondition, Strength: money.D(0.5), ExitPct: money.D(0.3),
			Method: events.MethodLimit, Reason: "volatility above threshold",
			Urgency: events.UrgencyLow, Timestamp: now,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength.GreaterThan(out[j].Strength) })
	return out
}

// SynthesizeTimeExpired builds the forced time-based exit signal the
// supervisor emits when maxHoldMs elapses.
func SynthesizeTimeExpired(now time.Time) events.ExitSignal {
	return events.ExitSignal{
		Type: events.ExitTimeBased, Strength: money.D(1.0), ExitPct: money.D(1.0),
		Method: events.MethodMarket, Reason: "max hold time elapsed",
		Urgency: events.UrgencyHigh, Timestamp: now,
	}
}
