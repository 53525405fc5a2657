package basis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func TestScanBasisDetectsContangoOpportunity(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()
	expiry := now.Add(30 * 24 * time.Hour)
	c := events.BasisContract{
		Exchange:     "deribit",
		Symbol:       "BTC-30JUN",
		ContractType: events.ContractQuarterly,
		ExpiryDate:   &expiry,
		MarkPrice:    money.D(102000),
		IndexPrice:   money.D(100000),
		OpenInterest: money.D(12_000_000),
	}
	opp := d.ScanBasis(c, now)
	require.NotNil(t, opp)
	assert.Equal(t, events.Contango, opp.MarketStructure)
	assert.True(t, opp.Active)
}

func TestScanBasisExpiresWhenEdgeCollapses(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()
	expiry := now.Add(30 * 24 * time.Hour)
	c := events.BasisContract{
		Exchange:     "deribit",
		Symbol:       "BTC-30JUN",
		ContractType: events.ContractQuarterly,
		ExpiryDate:   &expiry,
		MarkPrice:    money.D(102000),
		IndexPrice:   money.D(100000),
		OpenInterest: money.D(12_000_000),
	}
	opp := d.ScanBasis(c, now)
	require.NotNil(t, opp)

	c.MarkPrice = money.D(100050)
	opp2 := d.ScanBasis(c, now)
	require.NotNil(t, opp2)
	assert.False(t, opp2.Active, "edge below threshold should close the opportunity")
}

func TestScanCalendarSpreadRejectsPerpetual(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()
	near := events.BasisContract{ContractType: events.ContractPerpetual, MarkPrice: money.D(100000)}
	far := events.BasisContract{ContractType: events.ContractQuarterly, MarkPrice: money.D(103000)}
	assert.Nil(t, d.ScanCalendarSpread(near, far, now))
}

func TestScanCalendarSpreadDetects(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()
	nearExpiry := now.Add(7 * 24 * time.Hour)
	farExpiry := now.Add(90 * 24 * time.Hour)
	near := events.BasisContract{
		Exchange: "deribit", Symbol: "BTC-W", ContractType: events.ContractWeekly,
		ExpiryDate: &nearExpiry, MarkPrice: money.D(100000),
	}
	far := events.BasisContract{
		Exchange: "deribit", Symbol: "BTC-Q", ContractType: events.ContractQuarterly,
		ExpiryDate: &farExpiry, MarkPrice: money.D(104000), OpenInterest: money.D(11_000_000),
	}
	opp := d.ScanCalendarSpread(near, far, now)
	require.NotNil(t, opp)
	assert.True(t, opp.Active)
}
