// Package limits provides per-venue rate limiting and exchange response
// header inspection. Per-key rate limiting is built on
// golang.org/x/time/rate for proper token-bucket semantics (burst plus
// smooth refill) instead of a single-slot last-call check.
package limits

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// ReadBinanceWeight extracts the X-MBX-USED-WEIGHT headers if present.
func ReadBinanceWeight(h http.Header) (string, string) {
	return h.Get("X-MBX-USED-WEIGHT-1M"), h.Get("X-MBX-USED-WEIGHT")
}

// Registry holds one rate.Limiter per venue, created lazily.
type Registry struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	byVenue   map[string]*rate.Limiter
}

// NewRegistry constructs a Registry issuing perSecond tokens/sec with
// the given burst, per venue.
func NewRegistry(perSecond float64, burst int) *Registry {
	return &Registry{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		byVenue:   make(map[string]*rate.Limiter),
	}
}

func (r *Registry) limiterFor(venue string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byVenue[venue]
	if !ok {
		l = rate.NewLimiter(r.perSecond, r.burst)
		r.byVenue[venue] = l
	}
	return l
}

// Allow reports whether a request to venue may proceed immediately,
// consuming a token if so.
func (r *Registry) Allow(venue string) bool {
	return r.limiterFor(venue).Allow()
}

// Wait blocks until a token for venue is available or ctx is done.
func (r *Registry) Wait(ctx context.Context, venue string) error {
	return r.limiterFor(venue).Wait(ctx)
}
