// Package correlation implements the Correlation Store: Pearson
// correlation between a reference symbol (BTC) and
// each configured altcoin, lag estimation, a blended confidence score, and
// breakdown detection against a recent-window baseline.
package correlation

import (
	"math"
	"sync"
	"time"

	"github.com/riftline/ineffic-engine/internal/engerr"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Config holds the store's tunables.
type Config struct {
	MinSamples       int           // default 100
	Lookback         time.Duration // default 7 days
	MaxLag           time.Duration
	BaselineLag      time.Duration // default 5m, used when no move qualifies
	MoveThresholdPct money.Dec     // default 1%, significant R move
	MoveWindow       int           // default 20 samples
	WeightRho        money.Dec     // w1, default 0.7
	WeightVariance   money.Dec     // w2, default 0.3
	MaxVarianceScale money.Dec     // normalizer for variance term
	BreakdownDelta   money.Dec     // default 0.3
	MinConfidence    money.Dec
	BaseReversionMs  int64
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		MinSamples:       100,
		Lookback:         7 * 24 * time.Hour,
		MaxLag:           30 * time.Minute,
		BaselineLag:      5 * time.Minute,
		MoveThresholdPct: money.D(0.01),
		MoveWindow:       20,
		WeightRho:        money.D(0.7),
		WeightVariance:   money.D(0.3),
		MaxVarianceScale: money.D(1.0),
		BreakdownDelta:   money.D(0.3),
		MinConfidence:    money.D(0.5),
		BaseReversionMs:  int64(30 * time.Minute / time.Millisecond),
	}
}

// ReturnSeries is an aligned, per-minute return series for one symbol.
type ReturnSeries struct {
	Timestamps []time.Time
	Returns    []money.Dec
}

// Store maintains a CoinCorrelation per altcoin against a single reference
// symbol.
type Store struct {
	cfg  Config
	ref  string

	mu    sync.RWMutex
	byCoin map[string]events.CoinCorrelation
}

// NewStore creates a Store for reference symbol ref (e.g. "BTC").
func NewStore(ref string, cfg Config) *Store {
	return &Store{cfg: cfg, ref: ref, byCoin: make(map[string]events.CoinCorrelation)}
}

// Ref returns the reference symbol this store correlates every altcoin
// against (e.g. "BTC"), so callers can build the store's pair keys.
func (s *Store) Ref() string { return s.ref }

// Get returns the last-computed correlation for altcoin, if any.
func (s *Store) Get(altcoin string) (events.CoinCorrelation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byCoin[altcoin]
	return c, ok
}

// All returns a snapshot of every stored correlation, keyed by pair, for
// callers that persist the baseline between restarts.
func (s *Store) All() map[string]events.CoinCorrelation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]events.CoinCorrelation, len(s.byCoin))
	for k, v := range s.byCoin {
		out[k] = v
	}
	return out
}

// Seed installs a previously-persisted correlation as pair's baseline,
// without requiring a fresh sample window the way Recompute does. Used at
// startup to restore state a cache backend saved from a prior run.
func (s *Store) Seed(pair string, c events.CoinCorrelation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCoin[pair] = c
}

// pearson computes the Pearson correlation coefficient of two equal-length
// aligned series.
func pearson(a, b []money.Dec) money.Dec {
	n := len(a)
	if n == 0 {
		return money.Zero
	}
	meanA, meanB := money.Mean(a), money.Mean(b)
	var num, sumSqA, sumSqB money.Dec = money.Zero, money.Zero, money.Zero
	for i := 0; i < n; i++ {
		da := a[i].Sub(meanA)
		db := b[i].Sub(meanB)
		num = num.Add(da.Mul(db))
		sumSqA = sumSqA.Add(da.Mul(da))
		sumSqB = sumSqB.Add(db.Mul(db))
	}
	denomF := math.Sqrt(f64(sumSqA) * f64(sumSqB))
	if denomF == 0 {
		return money.Zero
	}
	return money.D(f64(num) / denomF)
}

func f64(d money.Dec) float64 {
	f, _ := d.Float64()
	return f
}

// lagEstimate is the mean/variance of estimated lags across qualifying
// reference moves.
type lagEstimate struct {
	meanMs     int64
	varianceMs float64
	samples    int
}

// estimateLag finds, for each significant reference move in ref, the
// best-matching altcoin move within [0, maxLag] by combined direction
// match x magnitude similarity, and aggregates the lag as mean/variance.
func estimateLag(ref, alt ReturnSeries, cfg Config) lagEstimate {
	var lags []float64
	n := len(ref.Returns)
	for i := cfg.MoveWindow; i < n; i++ {
		window := ref.Returns[i-cfg.MoveWindow : i]
		delta := money.Zero
		for _, r := range window {
			delta = delta.Add(r)
		}
		if money.Abs(delta).LessThan(cfg.MoveThresholdPct) {
			continue
		}
		refT := ref.Timestamps[i]
		bestScore := -1.0
		bestLagMs := int64(-1)
		for j, at := range alt.Timestamps {
			lag := at.Sub(refT)
			if lag < 0 || lag > cfg.MaxLag {
				continue
			}
			altR := alt.Returns[j]
			dirMatch := 0.0
			if (delta.IsPositive() && altR.IsPositive()) || (delta.IsNegative() && altR.IsNegative()) {
				dirMatch = 1.0
			}
			magSim := 1.0 - math.Min(1.0, math.Abs(f64(money.Abs(delta))-f64(money.Abs(altR)))/math.Max(1e-9, f64(money.Abs(delta))))
			score := dirMatch * magSim
			if score > bestScore {
				bestScore = score
				bestLagMs = int64(lag / time.Millisecond)
			}
		}
		if bestLagMs >= 0 {
			lags = append(lags, float64(bestLagMs))
		}
	}
	if len(lags) == 0 {
		return lagEstimate{meanMs: int64(cfg.BaselineLag / time.Millisecond), samples: 0}
	}
	sum := 0.0
	for _, l := range lags {
		sum += l
	}
	mean := sum / float64(len(lags))
	var sumSq float64
	for _, l := range lags {
		sumSq += (l - mean) * (l - mean)
	}
	variance := sumSq / float64(len(lags))
	return lagEstimate{meanMs: int64(mean), varianceMs: variance, samples: len(lags)}
}

// Recompute computes a fresh CoinCorrelation for altcoin from aligned
// return series, stamped with now. Returns an engerr error of kind
// KindInsufficientData if N < MinSamples.
func (s *Store) Recompute(altcoin string, refSeries, altSeries ReturnSeries, now time.Time) (events.CoinCorrelation, error) {
	n := len(refSeries.Returns)
	if n != len(altSeries.Returns) || n < s.cfg.MinSamples {
		return events.CoinCorrelation{}, engerr.WithReasons(engerr.KindInsufficientData, "correlation sample too small")
	}

	rho := pearson(refSeries.Returns, altSeries.Returns)
	lag := estimateLag(refSeries, altSeries, s.cfg)

	varianceTerm := 1.0 - clamp01(lag.varianceMs/f64(s.cfg.MaxVarianceScale))
	confidence := f64(money.Abs(rho))*f64(s.cfg.WeightRho) + varianceTerm*f64(s.cfg.WeightVariance)

	c := events.CoinCorrelation{
		Altcoin:                altcoin,
		CorrelationCoefficient: rho,
		AvgDelayMs:             lag.meanMs,
		DelayVariance:          lag.varianceMs,
		Confidence:             money.D(clamp01(confidence)),
		SampleSize:             n,
		UpdatedAt:              now,
	}

	s.mu.Lock()
	s.byCoin[altcoin] = c
	s.mu.Unlock()
	return c, nil
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

// CheckBreakdown compares a recent short-horizon Pearson correlation
// against the stored baseline and emits a CorrelationBreakdownEvent when
// the deviation exceeds BreakdownDelta and confidence clears MinConfidence.
// The returned event's DetectedAt is stamped with now.
func (s *Store) CheckBreakdown(pair string, recentSeries1, recentSeries2 ReturnSeries, confidence money.Dec, now time.Time) (events.CorrelationBreakdownEvent, bool) {
	s.mu.RLock()
	baseline, ok := s.byCoin[pair]
	s.mu.RUnlock()
	if !ok {
		return events.CorrelationBreakdownEvent{}, false
	}

	recentRho := pearson(recentSeries1.Returns, recentSeries2.Returns)
	deviation := money.Abs(baseline.CorrelationCoefficient.Sub(recentRho))
	if deviation.LessThan(s.cfg.BreakdownDelta) || confidence.LessThan(s.cfg.MinConfidence) {
		return events.CorrelationBreakdownEvent{}, false
	}

	normalMid := baseline.CorrelationCoefficient
	reversionMs := float64(s.cfg.BaseReversionMs)
	if !normalMid.IsZero() {
		reversionMs *= 1 + f64(deviation)/f64(money.Abs(normalMid))
	}

	ev := events.CorrelationBreakdownEvent{
		Pair:                    pair,
		NormalRangeLow:          baseline.CorrelationCoefficient.Sub(s.cfg.BreakdownDelta),
		NormalRangeHigh:         baseline.CorrelationCoefficient.Add(s.cfg.BreakdownDelta),
		CurrentCorrelation:      recentRho,
		Deviation:               deviation,
		ExpectedReversionTarget: baseline.CorrelationCoefficient,
		ExpectedReversionTimeMs: int64(reversionMs),
		Confidence:              confidence,
		DataPoints:              len(recentSeries1.Returns),
		Status:                  events.BreakdownActive,
		DetectedAt:              now,
	}
	return ev, true
}
