package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// TradeStatus is the lifecycle status of a Trade. Monotone along
// pending -> entered -> (partial | exited | expired | failed); no
// transitions back.
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradePartial  TradeStatus = "partial"
	TradeEntered  TradeStatus = "entered"
	TradeExited   TradeStatus = "exited"
	TradeFailed   TradeStatus = "failed"
	TradeExpired  TradeStatus = "expired"
)

// CanTransition reports whether moving from from to next is a legal,
// monotone trade-status transition.
func CanTransitionTrade(from, next TradeStatus) bool {
	switch from {
	case TradePending:
		return next == TradeEntered || next == TradeFailed || next == TradeExpired
	case TradeEntered:
		return next == TradePartial || next == TradeExited || next == TradeExpired || next == TradeFailed
	case TradePartial:
		return next == TradeExited || next == TradeExpired || next == TradeFailed
	default:
		return false // exited/failed/expired are terminal
	}
}

// Trade is the lifecycle record a Supervisor owns exclusively for one plan.
type Trade struct {
	ID          string
	PlanID      string
	Symbol      string
	EntrySignal string
	ExitSignal  string
	EntryPrice  *money.Dec
	ExitPrice   *money.Dec
	PnL         *money.Dec
	PnLPct      *money.Dec
	Status      TradeStatus
	EntryTime   *time.Time
	ExitTime    *time.Time
	Notes       []string
}

// ExitSignalType enumerates the Exit Signal Engine's typed signals.
type ExitSignalType string

const (
	ExitTargetReached   ExitSignalType = "target-reached"
	ExitStopLoss        ExitSignalType = "stop-loss"
	ExitTimeBased       ExitSignalType = "time-based"
	ExitMarketCondition ExitSignalType = "market-condition"
	ExitEmergency       ExitSignalType = "emergency"
)

// ExitUrgency is the urgency rubric attached to an ExitSignal.
type ExitUrgency string

const (
	UrgencyLow      ExitUrgency = "low"
	UrgencyMedium   ExitUrgency = "medium"
	UrgencyHigh     ExitUrgency = "high"
	UrgencyCritical ExitUrgency = "critical"
)

// ExitSignal is one emission from the Exit Signal Engine.
type ExitSignal struct {
	Type            ExitSignalType
	Strength        money.Dec // 0-1
	ExitPct         money.Dec // 0-1
	Method          EntryMethod
	Reason          string
	Urgency         ExitUrgency
	ExpectedOutcome string
	Timestamp       time.Time
}
