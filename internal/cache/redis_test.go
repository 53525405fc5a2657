package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func TestSeedReturnsFalseOnMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "ineffic:correlation:")

	mock.ExpectGet("ineffic:correlation:ETH").RedisNil()

	c, ok, err := s.Seed(context.Background(), "ETH")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, events.CoinCorrelation{}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedReturnsStoredValueOnHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "ineffic:correlation:")

	stored := events.CoinCorrelation{
		Altcoin:                "ETH",
		CorrelationCoefficient: money.D(0.82),
		AvgDelayMs:             45_000,
		Confidence:             money.D(0.7),
		SampleSize:             500,
		UpdatedAt:              time.Now(),
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet("ineffic:correlation:ETH").SetVal(string(raw))

	got, ok, err := s.Seed(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ETH", got.Altcoin)
	assert.Equal(t, 500, got.SampleSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRejectsStaleEntry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "ineffic:correlation:")

	stale := events.CoinCorrelation{Altcoin: "ETH", UpdatedAt: time.Now().Add(-48 * time.Hour)}
	raw, err := json.Marshal(stale)
	require.NoError(t, err)

	mock.ExpectGet("ineffic:correlation:ETH").SetVal(string(raw))

	_, ok, err := s.Seed(context.Background(), "ETH")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistWritesWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, "ineffic:correlation:")

	c := events.CoinCorrelation{Altcoin: "ETH", UpdatedAt: time.Now()}
	mock.Regexp().ExpectSet("ineffic:correlation:ETH", `.*`, TTL).SetVal("OK")

	require.NoError(t, s.Persist(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}
