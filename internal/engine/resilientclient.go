package engine

import (
	"context"
	"time"

	"github.com/riftline/ineffic-engine/internal/adapters"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/ports"

	"github.com/riftline/ineffic-engine/infra/breakers"
	"github.com/riftline/ineffic-engine/infra/limits"
)

// resilientClient decorates a ports.ExchangeClient's order operations
// with a per-venue circuit breaker, rate limiter, and health tracker, so
// every Trade Lifecycle Supervisor submits orders through the same
// venue-protection policy regardless of which detector produced the plan.
type resilientClient struct {
	ports.ExchangeClient
	breakers *breakers.Registry
	limiter  *limits.Registry
	health   *adapters.Registry
	now      func() time.Time
}

func newResilientClient(underlying ports.ExchangeClient, breakerReg *breakers.Registry, limiterReg *limits.Registry, healthReg *adapters.Registry, now func() time.Time) *resilientClient {
	return &resilientClient{ExchangeClient: underlying, breakers: breakerReg, limiter: limiterReg, health: healthReg, now: now}
}

func (c *resilientClient) PlaceOrder(ctx context.Context, venue string, side ports.OrderSide, size money.Dec, typ ports.OrderType, price *money.Dec) (ports.OrderResult, error) {
	if err := c.limiter.Wait(ctx, venue); err != nil {
		return ports.OrderResult{}, err
	}

	start := c.now()
	res, err := c.breakers.Execute(venue, func() (any, error) {
		return c.ExchangeClient.PlaceOrder(ctx, venue, side, size, typ, price)
	})
	c.health.For(venue).Record(c.now(), c.now().Sub(start), err != nil)
	if err != nil {
		return ports.OrderResult{}, err
	}
	return res.(ports.OrderResult), nil
}

func (c *resilientClient) CancelOrder(ctx context.Context, venue, orderID string) error {
	_, err := c.breakers.Execute(venue, func() (any, error) {
		return nil, c.ExchangeClient.CancelOrder(ctx, venue, orderID)
	})
	return err
}

var _ ports.ExchangeClient = (*resilientClient)(nil)
