package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// RiskLevel is the discrete risk rubric output of the classifier.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// SourceKind identifies which detector family produced the raw event
// wrapped by an OpportunityClassification.
type SourceKind string

const (
	SourceDepeg             SourceKind = "depeg"
	SourceMomentumTransfer  SourceKind = "momentum_transfer"
	SourceCorrelationBreak  SourceKind = "correlation_breakdown"
	SourceBasisArbitrage    SourceKind = "basis_arbitrage"
	SourceCalendarSpread    SourceKind = "calendar_spread"
	SourceCrossExchangeArb  SourceKind = "cross_exchange_arbitrage"
)

// VenueScore ranks a venue for entry or exit.
type VenueScore struct {
	Venue string
	Score money.Dec
}

// OpportunityClassification enriches a raw detection with scoring, sizing,
// and an exit contract.
type OpportunityClassification struct {
	ID                       string
	SourceKind               SourceKind
	SourceEventID            string
	OpportunityScore         money.Dec // 0-100
	RiskAdjustedScore        money.Dec // <= OpportunityScore
	ExpectedProfitPct        money.Dec
	ExpectedProfitUsd        money.Dec
	EstimatedReversionTimeMs int64
	SuccessProbability       money.Dec // 0-1
	ConfidenceLevel          money.Dec // 0-1
	RiskLevel                RiskLevel
	Priority                 money.Dec
	BestEntryVenues          []VenueScore // top 3
	BestExitVenues           []VenueScore // top 3
	RecommendedPositionSize  money.Dec
	RecommendedLeverage      money.Dec
	OptimalEntryPrice        money.Dec
	OptimalExitPrice         money.Dec
	HistoricalComparison     string
	MarketContext            string
	ClassifiedAt             time.Time
	ExpiresAt                time.Time
}
