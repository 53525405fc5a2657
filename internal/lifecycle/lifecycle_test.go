package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/exitengine"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

type fakeClient struct {
	ports.ExchangeClient
	fail bool
}

func (f *fakeClient) PlaceOrder(ctx context.Context, venue string, side ports.OrderSide, size money.Dec, typ ports.OrderType, price *money.Dec) (ports.OrderResult, error) {
	if f.fail {
		return ports.OrderResult{}, assertErr{}
	}
	return ports.OrderResult{FilledSize: size, FilledPrice: money.D(100), Status: "filled"}, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "order failed" }

func samplePlan() events.ExecutionPlan {
	return events.ExecutionPlan{
		ID: "plan-1",
		EntryStrategy: events.EntryStrategy{
			Steps: []events.ExecutionStep{
				{StepNo: 1, Venue: "kraken", Size: money.D(1), Status: events.StepPending},
			},
		},
	}
}

func TestEnterTransitionsToEntered(t *testing.T) {
	clk := clock.NewSimulated(time.Now())
	cfg := DefaultConfig()
	cfg.InterStepDelay = 0
	s := New(samplePlan(), cfg, clk, &fakeClient{})

	err := s.Enter(context.Background(), samplePlan())
	require.NoError(t, err)
	assert.Equal(t, events.TradeEntered, s.Trade().Status)
	require.NotNil(t, s.Trade().EntryPrice)
}

func TestEnterFailsWhenOrderPlacementFails(t *testing.T) {
	clk := clock.NewSimulated(time.Now())
	cfg := DefaultConfig()
	cfg.InterStepDelay = 0
	cfg.MaxRetries = 1
	s := New(samplePlan(), cfg, clk, &fakeClient{fail: true})

	err := s.Enter(context.Background(), samplePlan())
	assert.Error(t, err)
	assert.Equal(t, events.TradeFailed, s.Trade().Status)
}

func TestMonitorCycleAutoExecutesCritical(t *testing.T) {
	clk := clock.NewSimulated(time.Now())
	cfg := DefaultConfig()
	cfg.InterStepDelay = 0
	s := New(samplePlan(), cfg, clk, &fakeClient{})
	require.NoError(t, s.Enter(context.Background(), samplePlan()))

	snap := exitengine.Snapshot{CurrentPrice: money.D(80), PnLPct: money.D(-0.10), TimeRemaining: time.Hour}
	auto, policy := s.MonitorCycle(context.Background(), snap, clk.Now().Add(time.Hour))
	require.NotNil(t, auto)
	assert.Equal(t, events.ExitEmergency, auto.Type)
	assert.Equal(t, events.TradeExited, s.Trade().Status)
	require.Len(t, policy, 1, "the non-critical stop-loss signal is forwarded to policy")
	assert.Equal(t, events.ExitStopLoss, policy[0].Type)
}

func TestMonitorCycleMaxHoldSynthesizesTimeExit(t *testing.T) {
	clk := clock.NewSimulated(time.Now())
	cfg := DefaultConfig()
	cfg.InterStepDelay = 0
	s := New(samplePlan(), cfg, clk, &fakeClient{})
	require.NoError(t, s.Enter(context.Background(), samplePlan()))

	past := clk.Now().Add(-time.Minute)
	snap := exitengine.Snapshot{CurrentPrice: money.D(101)}
	auto, _ := s.MonitorCycle(context.Background(), snap, past)
	require.NotNil(t, auto)
	assert.Equal(t, events.ExitTimeBased, auto.Type)
}

func TestCancelMarksFailed(t *testing.T) {
	clk := clock.NewSimulated(time.Now())
	s := New(samplePlan(), DefaultConfig(), clk, &fakeClient{})
	s.Cancel("user requested stop")
	assert.Equal(t, events.TradeFailed, s.Trade().Status)
	assert.NotEmpty(t, s.Trade().Notes)
}
