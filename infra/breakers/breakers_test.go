package breakers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsUnderlyingResult(t *testing.T) {
	b := New("kraken")
	res, err := b.Execute(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, res)
}

func TestExecuteTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("kraken")
	failing := func() (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(failing)
	}

	_, err := b.Execute(func() (any, error) { return "ok", nil })
	assert.Error(t, err, "breaker should be open after 3 consecutive failures")
}

func TestRegistryCreatesBreakerPerVenue(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Healthy("kraken"))

	failing := func() (any, error) { return nil, errors.New("boom") }
	for i := 0; i < 3; i++ {
		_, _ = r.Execute("kraken", failing)
	}
	assert.False(t, r.Healthy("kraken"))
	assert.True(t, r.Healthy("coinbase"), "other venues are tracked independently")
}
