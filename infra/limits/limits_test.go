package limits

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadBinanceWeightExtractsHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-MBX-USED-WEIGHT-1M", "120")
	h.Set("X-MBX-USED-WEIGHT", "45")

	oneMin, total := ReadBinanceWeight(h)
	assert.Equal(t, "120", oneMin)
	assert.Equal(t, "45", total)
}

func TestAllowConsumesBurstThenBlocks(t *testing.T) {
	r := NewRegistry(1, 2)
	assert.True(t, r.Allow("kraken"))
	assert.True(t, r.Allow("kraken"))
	assert.False(t, r.Allow("kraken"), "burst of 2 should be exhausted on the third call")
}

func TestVenuesAreRateLimitedIndependently(t *testing.T) {
	r := NewRegistry(1, 1)
	assert.True(t, r.Allow("kraken"))
	assert.False(t, r.Allow("kraken"))
	assert.True(t, r.Allow("coinbase"), "a different venue has its own bucket")
}
