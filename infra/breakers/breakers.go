// Package breakers provides a per-venue circuit breaker registry on top
// of sony/gobreaker (trip on 3 consecutive failures or a >5% error rate
// over at least 20 requests, 60s open interval/timeout), keyed by venue
// name and feeding the venue health tracker used by the Liquidity
// Analyzer's recovery sub-score and the Trade Lifecycle Supervisor's
// retries.
package breakers

import (
	"sync"
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker wraps one venue's circuit breaker.
type Breaker struct{ cb *cb.CircuitBreaker }

// New constructs a Breaker named name with the engine's standard trip
// policy.
func New(name string) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker's current state (closed/half-open/open).
func (b *Breaker) State() cb.State { return b.cb.State() }

// Counts returns the breaker's rolling request/failure counters.
func (b *Breaker) Counts() cb.Counts { return b.cb.Counts() }

// Registry holds one Breaker per venue, created lazily on first use.
type Registry struct {
	mu    sync.Mutex
	byVenue map[string]*Breaker
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byVenue: make(map[string]*Breaker)}
}

// For returns the Breaker for venue, creating it on first access.
func (r *Registry) For(venue string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byVenue[venue]
	if !ok {
		b = New(venue)
		r.byVenue[venue] = b
	}
	return b
}

// Execute runs fn through venue's breaker, creating the breaker if needed.
func (r *Registry) Execute(venue string, fn func() (any, error)) (any, error) {
	return r.For(venue).Execute(fn)
}

// Healthy reports whether venue's breaker is currently closed (not
// tripped).
func (r *Registry) Healthy(venue string) bool {
	return r.For(venue).State() == cb.StateClosed
}
