package exitengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func TestEvaluateEmergencyOutranksStopLoss(t *testing.T) {
	e := New(DefaultConfig())
	now := time.Now()
	sigs := e.Evaluate(now, Snapshot{PnLPct: money.D(-0.10), TimeRemaining: time.Hour})
	require.NotEmpty(t, sigs)
	assert.Equal(t, events.ExitEmergency, sigs[0].Type, "strongest signal should sort first")
	assert.Equal(t, events.UrgencyCritical, sigs[0].Urgency)
}

func TestEvaluateTargetTierProgression(t *testing.T) {
	e := New(DefaultConfig())
	now := time.Now()
	sigs := e.Evaluate(now, Snapshot{PnLPct: money.D(0.024), TimeRemaining: time.Hour}) // 0.8x target
	require.NotEmpty(t, sigs)
	found := false
	for _, s := range sigs {
		if s.Type == events.ExitTargetReached {
			found = true
			assert.True(t, s.ExitPct.Equal(money.D(0.7)))
		}
	}
	assert.True(t, found)
}

func TestEvaluateSuppressesDuplicateWithinCycle(t *testing.T) {
	e := New(DefaultConfig())
	now := time.Now()
	first := e.Evaluate(now, Snapshot{PnLPct: money.D(-0.02), TimeRemaining: time.Hour})
	require.NotEmpty(t, first)

	second := e.Evaluate(now.Add(time.Second), Snapshot{PnLPct: money.D(-0.02), TimeRemaining: time.Hour})
	assert.Empty(t, second, "repeated stop-loss condition within one cycle should be suppressed")

	third := e.Evaluate(now.Add(10*time.Second), Snapshot{PnLPct: money.D(-0.02), TimeRemaining: time.Hour})
	assert.NotEmpty(t, third, "new cycle should re-emit")
}

func TestEvaluateTimeBasedWarning(t *testing.T) {
	e := New(DefaultConfig())
	now := time.Now()
	sigs := e.Evaluate(now, Snapshot{PnLPct: money.Zero, TimeRemaining: time.Minute})
	found := false
	for _, s := range sigs {
		if s.Type == events.ExitTimeBased {
			found = true
		}
	}
	assert.True(t, found)
}
