// Package window implements the per-(symbol,exchange) rolling window: a
// bounded-time ring of price/liquidity/volume samples with O(1) amortized
// append. Retention trimming happens on append; reads skip samples older
// than maxAge.
package window

import (
	"math"
	"sync"
	"time"

	"github.com/riftline/ineffic-engine/internal/engerr"
	"github.com/riftline/ineffic-engine/internal/money"
)

// Sample is one rolling-window entry.
type Sample struct {
	Timestamp time.Time
	Price     money.Dec
	Liquidity money.Dec
	Volume    money.Dec
}

// Window is a single symbol/exchange's bounded-time ring buffer. All reads
// exclude samples older than maxAge; samples older than retention are
// trimmed on append.
type Window struct {
	mu        sync.RWMutex
	retention time.Duration
	maxAge    time.Duration
	samples   []Sample // ascending by Timestamp
}

// New creates a Window with the given retention (how long samples are kept
// before being dropped on trim) and maxAge (how stale a sample may be and
// still be considered valid by reads).
func New(retention, maxAge time.Duration) *Window {
	return &Window{retention: retention, maxAge: maxAge}
}

// Append adds a sample and trims samples older than retention relative to
// its timestamp. Amortized O(1).
func (w *Window) Append(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
	w.trim(s.Timestamp)
}

// trim drops samples older than retention relative to now. Caller holds mu.
func (w *Window) trim(now time.Time) {
	cutoff := now.Add(-w.retention)
	i := 0
	for i < len(w.samples) && w.samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = w.samples[i:]
	}
}

// valid filters out anything older than maxAge relative to asOf. Caller
// holds a read lock.
func (w *Window) valid(asOf time.Time) []Sample {
	cutoff := asOf.Add(-w.maxAge)
	out := make([]Sample, 0, len(w.samples))
	for _, s := range w.samples {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Latest returns the most recent non-stale sample.
func (w *Window) Latest(asOf time.Time) (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.valid(asOf)
	if len(v) == 0 {
		return Sample{}, false
	}
	return v[len(v)-1], true
}

// At returns the first sample with Timestamp >= bound.
func (w *Window) At(bound time.Time) (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.samples {
		if !s.Timestamp.Before(bound) {
			return s, true
		}
	}
	return Sample{}, false
}

// Returns computes the last n log-returns over non-stale samples, oldest
// first. Returns an engerr error of kind KindInsufficientData if fewer than
// n+1 samples exist.
func (w *Window) Returns(asOf time.Time, n int) ([]money.Dec, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.valid(asOf)
	if len(v) < n+1 {
		return nil, engerr.WithReasons(engerr.KindInsufficientData, "returns window too short")
	}
	start := len(v) - n - 1
	out := make([]money.Dec, 0, n)
	for i := start + 1; i < len(v); i++ {
		prev, cur := v[i-1].Price, v[i].Price
		if prev.IsZero() || prev.IsNegative() || cur.IsNegative() {
			continue
		}
		pf, _ := prev.Float64()
		cf, _ := cur.Float64()
		out = append(out, money.D(math.Log(cf/pf)))
	}
	return out, nil
}

// Mean returns the mean price over non-stale samples.
func (w *Window) Mean(asOf time.Time) money.Dec {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.valid(asOf)
	prices := make([]money.Dec, len(v))
	for i, s := range v {
		prices[i] = s.Price
	}
	return money.Mean(prices)
}

// StdDev returns the population standard deviation of price over
// non-stale samples.
func (w *Window) StdDev(asOf time.Time) money.Dec {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.valid(asOf)
	prices := make([]money.Dec, len(v))
	for i, s := range v {
		prices[i] = s.Price
	}
	return money.StdDev(prices)
}

// Percentile returns the pct-th percentile (0-100) price over non-stale
// samples, using linear interpolation between the nearest ranks.
func (w *Window) Percentile(asOf time.Time, pct float64) money.Dec {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.valid(asOf)
	if len(v) == 0 {
		return money.Zero
	}
	sorted := make([]money.Dec, len(v))
	for i, s := range v {
		sorted[i] = s.Price
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := money.D(rank - float64(lo))
	span := sorted[hi].Sub(sorted[lo])
	return sorted[lo].Add(span.Mul(frac))
}

// Len reports the raw (untrimmed-by-maxAge) sample count, mainly for tests.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

// Store is the keyed collection of Windows, one per (exchange, symbol).
type Store struct {
	mu        sync.Mutex
	windows   map[string]*Window
	retention time.Duration
	maxAge    time.Duration
}

// NewStore creates a Store whose Windows all share the given retention and
// maxAge.
func NewStore(retention, maxAge time.Duration) *Store {
	return &Store{windows: make(map[string]*Window), retention: retention, maxAge: maxAge}
}

func key(exchange, symbol string) string { return exchange + "|" + symbol }

// Get returns (creating if necessary) the Window for (exchange, symbol).
func (s *Store) Get(exchange, symbol string) *Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(exchange, symbol)
	w, ok := s.windows[k]
	if !ok {
		w = New(s.retention, s.maxAge)
		s.windows[k] = w
	}
	return w
}
