package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// MovementDirection is the sign of a Bitcoin movement.
type MovementDirection string

const (
	DirUp   MovementDirection = "up"
	DirDown MovementDirection = "down"
)

// BitcoinMovement is a detected reference-asset move over one of the
// configured lookback windows.
type BitcoinMovement struct {
	ID          string
	MagnitudePct money.Dec
	Direction   MovementDirection
	StartPrice  money.Dec
	EndPrice    money.Dec
	DurationMs  int64
	Volume      money.Dec
	Volatility  money.Dec
	Confidence  money.Dec
	Significant bool
	StartTime   time.Time
	EndTime     time.Time
	DetectedAt  time.Time
}

// CoinCorrelation is the correlation store's summary of one altcoin's
// historical relationship to the reference asset.
type CoinCorrelation struct {
	Altcoin                string
	CorrelationCoefficient money.Dec // in [-1, 1]
	AvgDelayMs             int64
	DelayVariance          float64
	Confidence             money.Dec
	SampleSize             int
	UpdatedAt              time.Time
}

// MomentumTransferOpportunity is emitted when a significant BitcoinMovement
// is expected to propagate into a correlated altcoin.
type MomentumTransferOpportunity struct {
	ID                string
	Altcoin           string
	SourceMovementID  string
	ExpectedDelayMs   int64
	ExpectedMagnitude money.Dec
	Confidence        money.Dec
	OptimalEntryTime  time.Time
	OptimalExitTime   time.Time
	DetectedAt        time.Time
}

// CorrelationBreakdownStatus is the lifecycle status of a breakdown event.
type CorrelationBreakdownStatus string

const (
	BreakdownActive   CorrelationBreakdownStatus = "active"
	BreakdownReverted CorrelationBreakdownStatus = "reverted"
	BreakdownFailed   CorrelationBreakdownStatus = "failed"
	BreakdownExpired  CorrelationBreakdownStatus = "expired"
)

// CorrelationBreakdownEvent is emitted when a pair's short-horizon
// correlation deviates materially from its long-horizon baseline.
type CorrelationBreakdownEvent struct {
	ID                      string
	Pair                    string // e.g. "ETH-BTC"
	NormalRangeLow          money.Dec
	NormalRangeHigh         money.Dec
	CurrentCorrelation      money.Dec
	Deviation               money.Dec
	ExpectedReversionTarget money.Dec
	ExpectedReversionTimeMs int64
	Confidence              money.Dec
	DataPoints              int
	Status                  CorrelationBreakdownStatus
	DetectedAt              time.Time
}
