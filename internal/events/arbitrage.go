package events

import (
	"time"

	"github.com/riftline/ineffic-engine/internal/money"
)

// TransactionCosts decomposes the fee/transfer components of an
// arbitrage trade.
type TransactionCosts struct {
	BuyFee        money.Dec
	SellFee       money.Dec
	WithdrawalFee money.Dec
	DepositFee    money.Dec
	NetworkFee    money.Dec
	Total         money.Dec
}

// RiskFactors decomposes an arbitrage opportunity's risk into its
// contributing dimensions, plus the weighted overall figure.
type RiskFactors struct {
	PriceMovementRisk money.Dec
	LiquidityRisk     money.Dec
	ExecutionRisk     money.Dec
	CounterpartyRisk  money.Dec
	OverallRisk       money.Dec
}

// ArbitrageOpportunity is a cross-venue (CEX or DEX) price-dislocation
// candidate.
type ArbitrageOpportunity struct {
	ID                    string
	Asset                 string // stablecoin or pair symbol
	BuyVenue              string
	SellVenue             string
	BuyPrice              money.Dec
	SellPrice             money.Dec
	DiffPct               money.Dec
	MaxTradeSize          money.Dec
	Costs                 TransactionCosts
	NetProfit             money.Dec
	NetProfitPct          money.Dec
	ExecutionTimeEstimateMs int64
	Risk                  RiskFactors
	Confidence            money.Dec
	DetectedAt            time.Time
	ExpiresAt             time.Time
	IsDEX                 bool
}
