// Package btcmove implements the Bitcoin Movement and Momentum Transfer
// detectors: reference-asset move detection over
// configured lookback windows, and propagation of significant moves into
// correlated altcoins via the correlation store.
package btcmove

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/correlation"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/window"
)

// Config holds movement-detection tunables.
type Config struct {
	Windows             []time.Duration // default 5m, 15m, 60m
	MovementThreshold   money.Dec       // default 1%
	SignificantThreshold money.Dec      // default 3%
	ReferenceVolume     money.Dec
	WeightMagnitude     money.Dec // w_m
	WeightVolume        money.Dec // w_v
	WeightVolatility    money.Dec // w_sigma

	MinCorrelation      money.Dec // default applied to |rho|
	MinConfidence       money.Dec
	MinExpectedMovement money.Dec
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		Windows:              []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute},
		MovementThreshold:    money.D(0.01),
		SignificantThreshold: money.D(0.03),
		ReferenceVolume:      money.D(1_000_000_000),
		WeightMagnitude:      money.D(0.5),
		WeightVolume:         money.D(0.3),
		WeightVolatility:     money.D(0.2),
		MinCorrelation:       money.D(0.5),
		MinConfidence:        money.D(0.5),
		MinExpectedMovement:  money.D(0.005),
	}
}

// Detector evaluates the reference symbol's rolling window for movements
// and, when significant, consults the correlation store to emit momentum
// transfer opportunities.
type Detector struct {
	cfg      Config
	win      *window.Window
	corrs    *correlation.Store
	log      zerolog.Logger
}

// New creates a Detector over the reference symbol's rolling window win,
// using corrs to look up altcoin correlations for momentum transfer.
func New(cfg Config, win *window.Window, corrs *correlation.Store) *Detector {
	return &Detector{cfg: cfg, win: win, corrs: corrs, log: log.With().Str("component", "btc_movement_detector").Logger()}
}

// EvaluateMovements computes a BitcoinMovement for every configured window
// whose |delta| clears MovementThreshold.
func (d *Detector) EvaluateMovements(asOf time.Time) []events.BitcoinMovement {
	var out []events.BitcoinMovement
	for _, w := range d.cfg.Windows {
		mv, ok := d.evaluateWindow(asOf, w)
		if ok {
			out = append(out, mv)
		}
	}
	return out
}

func (d *Detector) evaluateWindow(asOf time.Time, lookback time.Duration) (events.BitcoinMovement, bool) {
	first, ok := d.win.At(asOf.Add(-lookback))
	if !ok {
		return events.BitcoinMovement{}, false
	}
	latest, ok := d.win.Latest(asOf)
	if !ok || latest.Price.Equal(first.Price) && latest.Timestamp.Equal(first.Timestamp) {
		return events.BitcoinMovement{}, false
	}
	if first.Price.IsZero() {
		return events.BitcoinMovement{}, false
	}

	delta := latest.Price.Sub(first.Price).Div(first.Price)
	if money.Abs(delta).LessThan(d.cfg.MovementThreshold) {
		return events.BitcoinMovement{}, false
	}

	sigma := d.win.StdDev(asOf)
	deltaF, _ := money.Abs(delta).Float64()
	volF, _ := latest.Volume.Float64()
	refVolF, _ := d.cfg.ReferenceVolume.Float64()
	sigmaF, _ := sigma.Float64()

	confidence := f64weight(d.cfg.WeightMagnitude)*min1(deltaF/0.10) +
		f64weight(d.cfg.WeightVolume)*min1(volF/maxf(refVolF, 1)) +
		f64weight(d.cfg.WeightVolatility)*maxf(0.1, 1-10*sigmaF)

	dir := events.DirDown
	if delta.IsPositive() {
		dir = events.DirUp
	}

	mv := events.BitcoinMovement{
		ID:           uuid.NewString(),
		MagnitudePct: delta,
		Direction:    dir,
		StartPrice:   first.Price,
		EndPrice:     latest.Price,
		DurationMs:   latest.Timestamp.Sub(first.Timestamp).Milliseconds(),
		Volume:       latest.Volume,
		Volatility:   sigma,
		Confidence:   money.D(clamp01(confidence)),
		Significant:  money.Abs(delta).GreaterThanOrEqual(d.cfg.SignificantThreshold),
		StartTime:    first.Timestamp,
		EndTime:      latest.Timestamp,
		DetectedAt:   asOf,
	}
	return mv, true
}

func f64weight(d money.Dec) float64 { f, _ := d.Float64(); return f }
func min1(f float64) float64 {
	if f > 1 {
		return 1
	}
	return f
}
func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// EvaluateMomentumTransfer produces MomentumTransferOpportunity candidates
// for every altcoin whose correlation clears MinCorrelation/MinConfidence
// when movement M is significant.
func (d *Detector) EvaluateMomentumTransfer(now time.Time, m events.BitcoinMovement, altcoins []string) []events.MomentumTransferOpportunity {
	if !m.Significant {
		return nil
	}
	var out []events.MomentumTransferOpportunity
	for _, alt := range altcoins {
		c, ok := d.corrs.Get(alt + "-" + d.corrs.Ref())
		if !ok {
			continue
		}
		if money.Abs(c.CorrelationCoefficient).LessThan(d.cfg.MinCorrelation) || c.Confidence.LessThan(d.cfg.MinConfidence) {
			continue
		}

		expectedDelay := time.Duration(c.AvgDelayMs) * time.Millisecond
		expectedMagnitude := money.Abs(m.MagnitudePct).Mul(money.Abs(c.CorrelationCoefficient))
		if expectedMagnitude.LessThan(d.cfg.MinExpectedMovement) {
			continue
		}

		opp := events.MomentumTransferOpportunity{
			ID:                uuid.NewString(),
			Altcoin:           alt,
			SourceMovementID:  m.ID,
			ExpectedDelayMs:   c.AvgDelayMs,
			ExpectedMagnitude: expectedMagnitude,
			Confidence:        c.Confidence,
			OptimalEntryTime:  now.Add(time.Duration(float64(expectedDelay) * 0.2)),
			OptimalExitTime:   now.Add(time.Duration(float64(expectedDelay) * 1.2)),
			DetectedAt:        now,
		}
		out = append(out, opp)
	}
	return out
}
