package postgres

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func newMockStore(t *testing.T) (*DepegHistoryStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func TestRecordInsertsEvent(t *testing.T) {
	s, mock := newMockStore(t)

	e := events.DepegEvent{
		ID: "dp-1", Stablecoin: "USDX", PegValue: money.D(1), AvgPrice: money.D(0.98),
		Magnitude: money.D(0.02), Direction: events.Discount, Severity: events.SeverityModerate,
		Status: events.DepegActive, LiquidityScore: money.D(50), StartTime: time.Now(),
		MaxDeviation: money.D(0.02),
	}

	mock.ExpectExec("INSERT INTO depeg_events").WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Record(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentSimilarScansRows(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "stablecoin", "peg_value", "avg_price", "magnitude", "direction", "severity",
		"status", "exchanges", "liquidity_score", "estimated_reversion_time_ms",
		"actual_reversion_time_ms", "start_time", "end_time", "max_deviation", "market_conditions",
	}).AddRow(
		"dp-1", "USDX", "1", "0.98", "0.02", "discount", "moderate",
		"resolved", []byte(`[]`), "50", int64(3_600_000),
		int64(2_000_000), time.Now(), nil, "0.02", "",
	)
	mock.ExpectQuery("SELECT id, stablecoin").WillReturnRows(rows)

	out, err := s.RecentSimilar(context.Background(), events.DepegEvent{Stablecoin: "USDX", Magnitude: money.D(0.02)}, 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "dp-1", out[0].ID)
	assert.Equal(t, events.DepegResolved, out[0].Status)
}

func TestMedianReversionTimeScansDuration(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(
		sqlmock.NewRows([]string{"percentile_cont"}).AddRow(float64(1_800_000)),
	)

	d, err := s.MedianReversionTime(context.Background(), "USDX", money.D(0.01), money.D(0.03))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)
}

func TestSuccessRateHandlesNoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"resolved", "total"}).AddRow(float64(0), float64(0)),
	)

	rate, err := s.SuccessRate(context.Background(), "USDX", money.D(0.01), money.D(0.03))
	require.NoError(t, err)
	assert.True(t, rate.Equal(money.Zero))
}
