package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// DepegDirection is the sign of a stablecoin's deviation from its peg.
type DepegDirection string

const (
	Premium  DepegDirection = "premium"
	Discount DepegDirection = "discount"
)

// DepegSeverity is the threshold-ladder classification of a depeg's
// magnitude.
type DepegSeverity string

const (
	SeverityMinor    DepegSeverity = "minor"
	SeverityModerate DepegSeverity = "moderate"
	SeveritySevere   DepegSeverity = "severe"
	SeverityExtreme  DepegSeverity = "extreme"
)

// DepegStatus is the lifecycle status of a DepegEvent. Transitions are
// restricted to the DAG active -> {worsening, resolved, expired}; worsening
// may return to active only with equal-or-lower deviation.
type DepegStatus string

const (
	DepegActive    DepegStatus = "active"
	DepegWorsening DepegStatus = "worsening"
	DepegResolved  DepegStatus = "resolved"
	DepegExpired   DepegStatus = "expired"
)

// DepegEvent tracks a stablecoin's deviation from its peg across venues.
// It is created once per stablecoin while active and mutated in place by
// the detector that owns it; downstream consumers only ever see immutable
// snapshots (copies) of it.
type DepegEvent struct {
	ID                       string
	Stablecoin               string
	PegValue                 money.Dec
	AvgPrice                 money.Dec
	Magnitude                money.Dec
	Direction                DepegDirection
	Severity                 DepegSeverity
	Exchanges                []PriceTick
	LiquidityScore           money.Dec
	EstimatedReversionTimeMs int64
	Status                   DepegStatus
	StartTime                time.Time
	EndTime                  *time.Time
	MaxDeviation             money.Dec
	MarketConditions         string
	ActualReversionTimeMs    int64
}

// Snapshot returns an independent copy safe to publish to subscribers.
func (d *DepegEvent) Snapshot() DepegEvent {
	cp := *d
	cp.Exchanges = append([]PriceTick(nil), d.Exchanges...)
	return cp
}

// CanTransition reports whether a transition to next is legal per the
// status DAG.
func (d DepegStatus) CanTransition(next DepegStatus, newDeviation, oldDeviation money.Dec) bool {
	switch d {
	case DepegActive:
		return next == DepegActive || next == DepegWorsening || next == DepegResolved || next == DepegExpired
	case DepegWorsening:
		if next == DepegActive {
			return !newDeviation.GreaterThan(oldDeviation)
		}
		return next == DepegWorsening || next == DepegResolved || next == DepegExpired
	case DepegResolved, DepegExpired:
		return false // terminal
	}
	return false
}
