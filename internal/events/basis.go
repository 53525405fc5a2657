package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// ContractType enumerates the futures contract structures tracked by the
// Futures Basis & Calendar Spread Detector.
type ContractType string

const (
	ContractPerpetual   ContractType = "perpetual"
	ContractWeekly      ContractType = "weekly"
	ContractMonthly     ContractType = "monthly"
	ContractQuarterly   ContractType = "quarterly"
	ContractBiQuarterly ContractType = "bi_quarterly"
)

// MarketStructure classifies the sign of a basis.
type MarketStructure string

const (
	Contango     MarketStructure = "contango"
	Backwardation MarketStructure = "backwardation"
)

// BasisContract is one venue's futures/perpetual contract snapshot.
type BasisContract struct {
	Exchange         string
	Symbol           string
	BaseAsset        string
	QuoteAsset       string
	ContractType     ContractType
	ExpiryDate       *time.Time
	MarkPrice        money.Dec
	IndexPrice       money.Dec
	BasisPct         money.Dec
	BasisAnnualized  money.Dec
	OpenInterest     money.Dec
	Volume24h        money.Dec
	FundingRate      *money.Dec
	LastUpdated      time.Time
}

// BasisArbitrageOpportunity is emitted when a contract's annualized basis
// exceeds the configured threshold above the risk-free rate.
type BasisArbitrageOpportunity struct {
	ID              string
	Contract        BasisContract
	MarketStructure MarketStructure
	SpreadOpportunityPct money.Dec
	Confidence      money.Dec
	DetectedAt      time.Time
	Active          bool
}

// CalendarSpreadOpportunity is emitted when two non-perpetual contracts on
// the same venue/asset diverge beyond the configured calendar-spread
// threshold.
type CalendarSpreadOpportunity struct {
	ID                string
	Near              BasisContract
	Far               BasisContract
	SpreadPct         money.Dec
	SpreadAnnualized  money.Dec
	Confidence        money.Dec
	DetectedAt        time.Time
	Active            bool
}
