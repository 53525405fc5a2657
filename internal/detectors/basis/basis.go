// Package basis implements the Futures Basis & Calendar Spread Detector:
// per-asset basis scanning against a risk-free
// rate, and calendar-spread comparison between same-venue/asset contracts
// of differing expiry.
package basis

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds scan tunables.
type Config struct {
	RiskFreeRate       money.Dec
	MinBasisOpportunity money.Dec
	MinCalendarSpread  money.Dec
	MinConfidence      money.Dec
	OpenInterestSaturation money.Dec // default $10M
}

// DefaultConfig returns the default tunables. RiskFreeRate,
// MinBasisOpportunity and MinCalendarSpread are in percent, the same unit
// as BasisPct and BasisAnnualized.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:           money.D(4),
		MinBasisOpportunity:    money.D(2),
		MinCalendarSpread:      money.D(1.5),
		MinConfidence:          money.D(0.4),
		OpenInterestSaturation: money.D(10_000_000),
	}
}

// Detector scans BasisContracts grouped by asset on each Scan call.
type Detector struct {
	cfg Config
	log zerolog.Logger

	basisOpps    map[string]*events.BasisArbitrageOpportunity // keyed by exchange|symbol
	calendarOpps map[string]*events.CalendarSpreadOpportunity // keyed by near|far
}

// New creates a Detector.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:          cfg,
		log:          log.With().Str("component", "basis_detector").Logger(),
		basisOpps:    make(map[string]*events.BasisArbitrageOpportunity),
		calendarOpps: make(map[string]*events.CalendarSpreadOpportunity),
	}
}

func contractKey(c events.BasisContract) string { return c.Exchange + "|" + c.Symbol }

// computeBasis fills BasisPct and BasisAnnualized for a contract snapshot.
func computeBasis(c events.BasisContract, now time.Time) events.BasisContract {
	if c.IndexPrice.IsZero() {
		return c
	}
	c.BasisPct = c.MarkPrice.Sub(c.IndexPrice).Div(c.IndexPrice).Mul(money.D(100))
	if c.ContractType == events.ContractPerpetual || c.ExpiryDate == nil {
		c.BasisAnnualized = c.BasisPct
		return c
	}
	days := c.ExpiryDate.Sub(now).Hours() / 24
	if days <= 0 {
		days = 1
	}
	c.BasisAnnualized = c.BasisPct.Mul(money.D(365.0 / days))
	return c
}

func confidenceFor(c events.BasisContract, cfg Config, now time.Time) money.Dec {
	liqScore := money.Clamp(c.OpenInterest.Div(cfg.OpenInterestSaturation), money.Zero, money.One)
	expiryScore := money.One
	if c.ExpiryDate != nil {
		days := c.ExpiryDate.Sub(now).Hours() / 24
		expiryScore = money.Clamp(money.D(1.0-days/365.0), money.D(0.1), money.One)
	}
	return liqScore.Mul(money.D(0.6)).Add(expiryScore.Mul(money.D(0.4)))
}

// ScanBasis evaluates one contract's basis-arbitrage candidacy, creating,
// refreshing, or expiring the opportunity tracked for its exchange/symbol
// key.
func (d *Detector) ScanBasis(raw events.BasisContract, now time.Time) *events.BasisArbitrageOpportunity {
	c := computeBasis(raw, now)
	key := contractKey(c)
	confidence := confidenceFor(c, d.cfg, now)

	structure := events.Contango
	if c.BasisAnnualized.IsNegative() {
		structure = events.Backwardation
	}

	edge := money.Abs(c.BasisAnnualized).Sub(d.cfg.RiskFreeRate)
	qualifies := edge.GreaterThanOrEqual(d.cfg.MinBasisOpportunity) && confidence.GreaterThanOrEqual(d.cfg.MinConfidence)
	expired := c.ExpiryDate != nil && now.After(*c.ExpiryDate)

	existing, hasExisting := d.basisOpps[key]
	switch {
	case qualifies && !expired:
		if hasExisting {
			existing.Contract = c
			existing.MarketStructure = structure
			existing.SpreadOpportunityPct = edge
			existing.Confidence = confidence
			existing.Active = true
			return existing
		}
		opp := &events.BasisArbitrageOpportunity{
			ID:                   uuid.NewString(),
			Contract:             c,
			MarketStructure:      structure,
			SpreadOpportunityPct: edge,
			Confidence:           confidence,
			DetectedAt:           now,
			Active:               true,
		}
		d.basisOpps[key] = opp
		return opp

	case hasExisting:
		existing.Active = false
		delete(d.basisOpps, key)
		return existing

	default:
		return nil
	}
}

func calendarKey(near, far events.BasisContract) string {
	return near.Exchange + "|" + near.Symbol + ">" + far.Symbol
}

// ScanCalendarSpread compares any two non-perpetual contracts on the same
// venue/asset with near.Expiry < far.Expiry.
func (d *Detector) ScanCalendarSpread(near, far events.BasisContract, now time.Time) *events.CalendarSpreadOpportunity {
	if near.ContractType == events.ContractPerpetual || far.ContractType == events.ContractPerpetual {
		return nil
	}
	if near.ExpiryDate == nil || far.ExpiryDate == nil || !near.ExpiryDate.Before(*far.ExpiryDate) {
		return nil
	}
	if near.MarkPrice.IsZero() {
		return nil
	}

	spreadPct := far.MarkPrice.Sub(near.MarkPrice).Div(near.MarkPrice).Mul(money.D(100))
	daysBetween := far.ExpiryDate.Sub(*near.ExpiryDate).Hours() / 24
	if daysBetween <= 0 {
		daysBetween = 1
	}
	spreadAnnualized := spreadPct.Mul(money.D(365.0 / daysBetween))

	key := calendarKey(near, far)
	confidence := confidenceFor(far, d.cfg, now)
	qualifies := money.Abs(spreadAnnualized).GreaterThanOrEqual(d.cfg.MinCalendarSpread) && confidence.GreaterThanOrEqual(d.cfg.MinConfidence)
	expired := now.After(*far.ExpiryDate)

	existing, hasExisting := d.calendarOpps[key]
	switch {
	case qualifies && !expired:
		if hasExisting {
			existing.Near, existing.Far = near, far
			existing.SpreadPct = spreadPct
			existing.SpreadAnnualized = spreadAnnualized
			existing.Confidence = confidence
			existing.Active = true
			return existing
		}
		opp := &events.CalendarSpreadOpportunity{
			ID:               uuid.NewString(),
			Near:             near,
			Far:              far,
			SpreadPct:        spreadPct,
			SpreadAnnualized: spreadAnnualized,
			Confidence:       confidence,
			DetectedAt:       now,
			Active:           true,
		}
		d.calendarOpps[key] = opp
		return opp
	case hasExisting:
		existing.Active = false
		delete(d.calendarOpps, key)
		return existing
	default:
		return nil
	}
}

// PairByExpiry sorts non-perpetual contracts for the same asset ascending
// by expiry, a helper for callers building ScanCalendarSpread candidate
// pairs.
func PairByExpiry(contracts []events.BasisContract) []events.BasisContract {
	out := append([]events.BasisContract(nil), contracts...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiryDate == nil || out[j].ExpiryDate == nil {
			return false
		}
		return out[i].ExpiryDate.Before(*out[j].ExpiryDate)
	})
	return out
}
