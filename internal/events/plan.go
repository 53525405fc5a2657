package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// EntryMethod is how the plan builder chooses to work an entry.
type EntryMethod string

const (
	MethodMarket  EntryMethod = "market"
	MethodLimit   EntryMethod = "limit"
	MethodTWAP    EntryMethod = "twap"
	MethodIceberg EntryMethod = "iceberg"
)

// StepAction is the action an ExecutionStep performs.
type StepAction string

const (
	ActionBuy      StepAction = "buy"
	ActionSell     StepAction = "sell"
	ActionWithdraw StepAction = "withdraw"
	ActionDeposit  StepAction = "deposit"
	ActionWait     StepAction = "wait"
)

// StepStatus is the lifecycle status of one ExecutionStep.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ExecutionStep is one action in an ExecutionPlan's entry or unwind
// sequence.
type ExecutionStep struct {
	StepNo           int
	Venue            string
	Action           StepAction
	Size             money.Dec
	Price            *money.Dec
	TimingMs         int64
	OrderType        string
	ExpectedSlippage money.Dec
	Dependencies     []int
	Status           StepStatus
	Contingency      string
}

// EntryStrategy describes how the plan builder will acquire the position.
type EntryStrategy struct {
	Method           EntryMethod
	Venues           []string
	TotalSize        money.Dec
	Steps            []ExecutionStep
	ExpectedSlippage money.Dec
	ExecutionTimeMs  int64
}

// PartialExit is one tranche of a staged exit.
type PartialExit struct {
	Pct   money.Dec
	Price money.Dec
}

// ExitStrategy describes the plan builder's unwind contract.
type ExitStrategy struct {
	Method        EntryMethod
	TargetPrice   money.Dec
	StopLossPrice money.Dec
	PartialExits  []PartialExit
	MaxHoldMs     int64
}

// OutcomeScenario is one of the three outcome bands reported by the plan.
type OutcomeScenario struct {
	ProfitPct money.Dec
	ProfitUsd money.Dec
}

// ExpectedOutcomes is the best/most-likely/worst outcome triad used for
// plan validation.
type ExpectedOutcomes struct {
	Best       OutcomeScenario
	MostLikely OutcomeScenario
	Worst      OutcomeScenario
}

// FlashLoanIntegration is an optional plan field describing a flash-loan
// financed leg; whether its absence invalidates a plan is configuration.
type FlashLoanIntegration struct {
	Provider string
	Asset    string
	Amount   money.Dec
	FeePct   money.Dec
}

// ExecutionPlan is the stepwise plan produced for a classified opportunity.
type ExecutionPlan struct {
	ID                  string
	Symbol              string // entry symbol monitored against e.windows for live pricing
	Opportunity         OpportunityClassification
	PositionSizing      money.Dec
	EntryStrategy       EntryStrategy
	ExitStrategy        ExitStrategy
	RiskManagement      string
	FlashLoan           *FlashLoanIntegration
	ExpectedOutcomes    ExpectedOutcomes
	Confidence          money.Dec
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// ValidationVerdict is the plan builder's accept/reject decision.
type ValidationVerdict struct {
	Accepted bool
	Reasons  []string
}
