package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riftline/ineffic-engine/internal/money"
)

func TestSnapshotOfUnknownKeyIsZero(t *testing.T) {
	r := New()
	s := r.Snapshot("depeg")
	assert.Equal(t, uint64(0), s.Detections)
}

func TestRecordDetectionAndClassification(t *testing.T) {
	r := New()
	r.RecordDetection("depeg")
	r.RecordDetection("depeg")
	r.RecordClassification("depeg")

	s := r.Snapshot("depeg")
	assert.Equal(t, uint64(2), s.Detections)
	assert.Equal(t, uint64(1), s.Classifications)
}

func TestRecordTradeExitedComputesSuccessRateAndAverage(t *testing.T) {
	r := New()
	r.RecordTradeEntered("depeg")
	r.RecordTradeEntered("depeg")
	r.RecordTradeExited("depeg", true, money.D(100))
	r.RecordTradeExited("depeg", false, money.D(-40))

	s := r.Snapshot("depeg")
	assert.True(t, s.SuccessRate.Equal(money.D(0.5)))
	assert.True(t, s.TotalPnL.Equal(money.D(60)))
	assert.True(t, s.AveragePnL.Equal(money.D(30)))
}

func TestAllReturnsEveryTrackedKey(t *testing.T) {
	r := New()
	r.RecordDetection("depeg")
	r.RecordDetection("btc_movement")

	all := r.All()
	assert.Len(t, all, 2)
}
