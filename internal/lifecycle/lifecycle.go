// Package lifecycle implements the Trade Lifecycle Supervisor: one
// supervisor per active plan, driving entry through the execution port,
// spawning an Exit Signal Engine, honoring
// critical exit signals automatically, enforcing maxHoldMs, and handling
// cancellation with best-effort reversal.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/engerr"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/exitengine"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"
)

// Config holds supervisor tunables.
type Config struct {
	MaxRetries     int
	StepTimeout    time.Duration
	InterStepDelay time.Duration
}

// DefaultConfig returns sane defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, StepTimeout: 10 * time.Second, InterStepDelay: 500 * time.Millisecond}
}

// Supervisor owns the lifecycle of exactly one Trade.
type Supervisor struct {
	cfg     Config
	clk     clock.Clock
	client  ports.ExchangeClient
	exit    *exitengine.Engine
	log     zerolog.Logger

	trade     events.Trade
	cancelled bool
}

// New creates a Supervisor for plan, wired to client for order placement
// and clk for scheduling.
func New(plan events.ExecutionPlan, cfg Config, clk clock.Clock, client ports.ExchangeClient) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		clk:    clk,
		client: client,
		exit:   exitengine.New(exitengine.DefaultConfig()),
		log:    log.With().Str("component", "trade_supervisor").Str("plan_id", plan.ID).Logger(),
		trade: events.Trade{
			ID:     uuid.NewString(),
			PlanID: plan.ID,
			Symbol: plan.Symbol,
			Status: events.TradePending,
		},
	}
}

// Trade returns a snapshot of the supervised trade's current state.
func (s *Supervisor) Trade() events.Trade { return s.trade }

// transition applies a trade-status transition if legal per the monotone
// DAG, otherwise it is a no-op.
func (s *Supervisor) transition(next events.TradeStatus) bool {
	if !events.CanTransitionTrade(s.trade.Status, next) {
		return false
	}
	s.trade.Status = next
	return true
}

// EnterStep is one execution step of a plan's entry strategy.
type EnterStep = events.ExecutionStep

// Enter drives plan.EntryStrategy.Steps through the execution port in
// sequence, with inter-step delays and per-step retry/timeout.
func (s *Supervisor) Enter(ctx context.Context, plan events.ExecutionPlan) error {
	now := s.clk.Now()
	var filled money.Dec
	var totalCost money.Dec

	var done []events.ExecutionStep
	for _, step := range plan.EntryStrategy.Steps {
		if s.cancelled {
			s.reverseEntry(ctx, done)
			return s.fail("cancelled during entry")
		}

		res, err := s.executeStepWithRetry(ctx, step)
		if err != nil {
			s.reverseEntry(ctx, done)
			return s.fail("entry step failed after retries: " + err.Error())
		}
		step.Status = events.StepCompleted
		done = append(done, step)
		filled = filled.Add(res.FilledSize)
		totalCost = totalCost.Add(res.FilledSize.Mul(res.FilledPrice))

		if s.cfg.InterStepDelay > 0 {
			<-s.after(s.cfg.InterStepDelay)
		}
	}

	if filled.IsZero() {
		return s.fail("no fill")
	}

	entryPrice := totalCost.Div(filled)
	s.trade.EntryPrice = &entryPrice
	s.trade.EntryTime = &now
	if !s.transition(events.TradeEntered) {
		return engerr.New(engerr.KindFatalExecution, "illegal transition to entered")
	}
	s.log.Info().Str("entry_price", entryPrice.String()).Msg("trade entered")
	return nil
}

func (s *Supervisor) executeStepWithRetry(ctx context.Context, step events.ExecutionStep) (ports.OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
		res, err := s.client.PlaceOrder(stepCtx, step.Venue, ports.Buy, step.Size, ports.OrderMarket, step.Price)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return ports.OrderResult{}, lastErr
}

// reverseEntry best-effort reverses the completed steps of a partial entry
// by selling each step's size back on its venue.
func (s *Supervisor) reverseEntry(ctx context.Context, steps []events.ExecutionStep) {
	for _, step := range steps {
		if step.Status != events.StepCompleted {
			continue
		}
		_, err := s.client.PlaceOrder(ctx, step.Venue, ports.Sell, step.Size, ports.OrderMarket, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("venue", step.Venue).Msg("best-effort entry reversal failed")
		}
	}
}

func (s *Supervisor) fail(reason string) error {
	s.transition(events.TradeFailed)
	s.trade.Notes = append(s.trade.Notes, reason)
	return engerr.New(engerr.KindFatalExecution, reason)
}

// after is a small adapter over the Clock so Enter can select on a
// one-shot timer without leaking goroutines per call.
func (s *Supervisor) after(d time.Duration) <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.clk.After(d, func() { ch <- struct{}{} })
	return ch
}

// MonitorCycle runs one Exit Signal Engine evaluation, auto-executing on
// critical urgency and returning the rest for policy.
func (s *Supervisor) MonitorCycle(ctx context.Context, snap exitengine.Snapshot, maxHoldDeadline time.Time) (autoExecuted *events.ExitSignal, forPolicy []events.ExitSignal) {
	now := s.clk.Now()

	if !now.Before(maxHoldDeadline) {
		sig := exitengine.SynthesizeTimeExpired(now)
		s.executeExit(ctx, sig, snap)
		return &sig, nil
	}

	signals := s.exit.Evaluate(now, snap)
	for _, sig := range signals {
		if sig.Urgency == events.UrgencyCritical {
			s.executeExit(ctx, sig, snap)
			autoExecuted = &sig
			continue
		}
		forPolicy = append(forPolicy, sig)
	}
	return autoExecuted, forPolicy
}

// executeExit completes the trade on an honored exit signal.
func (s *Supervisor) executeExit(ctx context.Context, sig events.ExitSignal, snap exitengine.Snapshot) {
	if !s.transition(events.TradeExited) {
		if !s.transition(events.TradePartial) {
			return
		}
	}
	now := s.clk.Now()
	exitPrice := snap.CurrentPrice
	s.trade.ExitPrice = &exitPrice
	s.trade.ExitTime = &now
	s.trade.ExitSignal = string(sig.Type)

	if s.trade.EntryPrice != nil {
		pnl := exitPrice.Sub(*s.trade.EntryPrice)
		pnlPct := money.Zero
		if !s.trade.EntryPrice.IsZero() {
			pnlPct = pnl.Div(*s.trade.EntryPrice)
		}
		s.trade.PnL = &pnl
		s.trade.PnLPct = &pnlPct
	}
	s.log.Info().Str("exit_type", string(sig.Type)).Msg("trade exited")
}

// Cancel marks the supervisor cancelled; in-flight steps observe this on
// their next check and the trade is marked failed with a reason note.
func (s *Supervisor) Cancel(reason string) {
	s.cancelled = true
	if s.transition(events.TradeFailed) {
		s.trade.Notes = append(s.trade.Notes, "cancelled: "+reason)
	}
}
