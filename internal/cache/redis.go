// Package cache implements ports.CorrelationHistoryStore against Redis
// using github.com/redis/go-redis/v9, applying a short timeout to every
// call. It is a typed correlation seed/persist store rather than a
// generic byte-blob cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riftline/ineffic-engine/internal/events"
)

// TTL is how long a persisted CoinCorrelation remains seedable before it
// is considered too stale to trust without a fresh recompute.
const TTL = 24 * time.Hour

const callTimeout = 500 * time.Millisecond

// CorrelationStore is a Redis-backed ports.CorrelationHistoryStore.
type CorrelationStore struct {
	client *redis.Client
	prefix string
}

// New wraps an existing redis.Client. prefix namespaces keys, e.g.
// "ineffic:correlation:".
func New(client *redis.Client, prefix string) *CorrelationStore {
	return &CorrelationStore{client: client, prefix: prefix}
}

// NewFromAddr dials a client at addr with the engine's default options.
func NewFromAddr(addr, prefix string) *CorrelationStore {
	return New(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

func (s *CorrelationStore) key(altcoin string) string {
	return s.prefix + altcoin
}

// Seed returns the last persisted CoinCorrelation for altcoin, if any and
// not older than TTL.
func (s *CorrelationStore) Seed(ctx context.Context, altcoin string) (events.CoinCorrelation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.key(altcoin)).Bytes()
	if err == redis.Nil {
		return events.CoinCorrelation{}, false, nil
	}
	if err != nil {
		return events.CoinCorrelation{}, false, fmt.Errorf("reading correlation seed for %s: %w", altcoin, err)
	}

	var c events.CoinCorrelation
	if err := json.Unmarshal(raw, &c); err != nil {
		return events.CoinCorrelation{}, false, fmt.Errorf("decoding correlation seed for %s: %w", altcoin, err)
	}
	if time.Since(c.UpdatedAt) > TTL {
		return events.CoinCorrelation{}, false, nil
	}
	return c, true, nil
}

// Persist writes c, keyed by altcoin, with TTL expiry.
func (s *CorrelationStore) Persist(ctx context.Context, c events.CoinCorrelation) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding correlation for %s: %w", c.Altcoin, err)
	}
	if err := s.client.Set(ctx, s.key(c.Altcoin), raw, TTL).Err(); err != nil {
		return fmt.Errorf("persisting correlation for %s: %w", c.Altcoin, err)
	}
	return nil
}
