package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorRateComputesFractionWithinWindow(t *testing.T) {
	v := NewVenueHealth()
	now := time.Now()
	v.Record(now, 10*time.Millisecond, false)
	v.Record(now, 10*time.Millisecond, true)
	v.Record(now, 10*time.Millisecond, true)

	assert.InDelta(t, 2.0/3.0, v.ErrorRate(now), 1e-9)
}

func TestTrimExcludesSamplesOutsideWindow(t *testing.T) {
	v := NewVenueHealth()
	now := time.Now()
	v.Record(now.Add(-10*time.Minute), 10*time.Millisecond, true)
	v.Record(now, 10*time.Millisecond, false)

	assert.Equal(t, 0.0, v.ErrorRate(now))
}

func TestDegradedTripsOnHighErrorRate(t *testing.T) {
	v := NewVenueHealth()
	now := time.Now()
	for i := 0; i < 10; i++ {
		v.Record(now, time.Millisecond, i < 3)
	}
	assert.True(t, v.Degraded(now))
}

func TestDegradedTripsOnHighLatency(t *testing.T) {
	v := NewVenueHealth()
	now := time.Now()
	v.Record(now, 3*time.Second, false)
	assert.True(t, v.Degraded(now))
}

func TestRecoveryScoreIsOneForCleanVenue(t *testing.T) {
	v := NewVenueHealth()
	now := time.Now()
	v.Record(now, 5*time.Millisecond, false)
	assert.Equal(t, 1.0, v.RecoveryScore(now))
}

func TestRegistryTracksVenuesIndependently(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.For("kraken").Record(now, time.Millisecond, true)
	assert.Equal(t, 0.0, r.For("coinbase").ErrorRate(now))
	assert.Equal(t, 1.0, r.For("kraken").ErrorRate(now))
}
