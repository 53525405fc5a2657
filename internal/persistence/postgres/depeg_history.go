// Package postgres implements ports.DepegHistoryStore against PostgreSQL
// using sqlx.DB with per-call context timeouts, pq.Error code inspection
// for constraint violations, and JSONB for the nested tick slice.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

const uniqueViolation = "23505"

// Schema is the DDL the store expects to already exist. Migrations are
// managed outside this package; this constant documents the expected shape.
const Schema = `
CREATE TABLE IF NOT EXISTS depeg_events (
	id                          TEXT PRIMARY KEY,
	stablecoin                  TEXT NOT NULL,
	peg_value                   NUMERIC NOT NULL,
	avg_price                   NUMERIC NOT NULL,
	magnitude                   NUMERIC NOT NULL,
	direction                   TEXT NOT NULL,
	severity                    TEXT NOT NULL,
	status                      TEXT NOT NULL,
	exchanges                   JSONB NOT NULL DEFAULT '[]',
	liquidity_score             NUMERIC NOT NULL,
	estimated_reversion_time_ms BIGINT NOT NULL,
	actual_reversion_time_ms    BIGINT NOT NULL DEFAULT 0,
	start_time                  TIMESTAMPTZ NOT NULL,
	end_time                    TIMESTAMPTZ,
	max_deviation               NUMERIC NOT NULL,
	market_conditions           TEXT NOT NULL DEFAULT '',
	created_at                  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS depeg_events_stablecoin_mag_idx ON depeg_events (stablecoin, magnitude);
`

// DepegHistoryStore is a PostgreSQL-backed ports.DepegHistoryStore.
type DepegHistoryStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New wraps an existing *sqlx.DB. timeout bounds every query issued.
func New(db *sqlx.DB, timeout time.Duration) *DepegHistoryStore {
	return &DepegHistoryStore{db: db, timeout: timeout}
}

type depegRow struct {
	ID                       string          `db:"id"`
	Stablecoin               string          `db:"stablecoin"`
	PegValue                 string          `db:"peg_value"`
	AvgPrice                 string          `db:"avg_price"`
	Magnitude                string          `db:"magnitude"`
	Direction                string          `db:"direction"`
	Severity                 string          `db:"severity"`
	Status                   string          `db:"status"`
	Exchanges                json.RawMessage `db:"exchanges"`
	LiquidityScore           string          `db:"liquidity_score"`
	EstimatedReversionTimeMs int64           `db:"estimated_reversion_time_ms"`
	ActualReversionTimeMs    int64           `db:"actual_reversion_time_ms"`
	StartTime                time.Time       `db:"start_time"`
	EndTime                  sql.NullTime    `db:"end_time"`
	MaxDeviation             string          `db:"max_deviation"`
	MarketConditions         string          `db:"market_conditions"`
}

func (r depegRow) toEvent() (events.DepegEvent, error) {
	var exchanges []events.PriceTick
	if len(r.Exchanges) > 0 {
		if err := json.Unmarshal(r.Exchanges, &exchanges); err != nil {
			return events.DepegEvent{}, fmt.Errorf("decoding exchanges: %w", err)
		}
	}
	e := events.DepegEvent{
		ID:                       r.ID,
		Stablecoin:               r.Stablecoin,
		PegValue:                 money.D(parseFloat(r.PegValue)),
		AvgPrice:                 money.D(parseFloat(r.AvgPrice)),
		Magnitude:                money.D(parseFloat(r.Magnitude)),
		Direction:                events.DepegDirection(r.Direction),
		Severity:                 events.DepegSeverity(r.Severity),
		Status:                   events.DepegStatus(r.Status),
		Exchanges:                exchanges,
		LiquidityScore:           money.D(parseFloat(r.LiquidityScore)),
		EstimatedReversionTimeMs: r.EstimatedReversionTimeMs,
		ActualReversionTimeMs:    r.ActualReversionTimeMs,
		StartTime:                r.StartTime,
		MaxDeviation:             money.D(parseFloat(r.MaxDeviation)),
		MarketConditions:         r.MarketConditions,
	}
	if r.EndTime.Valid {
		t := r.EndTime.Time
		e.EndTime = &t
	}
	return e, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Record inserts e, ignoring a duplicate-ID conflict as a no-op so
// repeated calls for the same event stay idempotent.
func (s *DepegHistoryStore) Record(ctx context.Context, e events.DepegEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exchangesJSON, err := json.Marshal(e.Exchanges)
	if err != nil {
		return fmt.Errorf("marshaling exchanges: %w", err)
	}

	query := `
		INSERT INTO depeg_events (
			id, stablecoin, peg_value, avg_price, magnitude, direction, severity,
			status, exchanges, liquidity_score, estimated_reversion_time_ms,
			actual_reversion_time_ms, start_time, end_time, max_deviation, market_conditions
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.Stablecoin, e.PegValue.String(), e.AvgPrice.String(), e.Magnitude.String(),
		string(e.Direction), string(e.Severity), string(e.Status), exchangesJSON,
		e.LiquidityScore.String(), e.EstimatedReversionTimeMs, e.ActualReversionTimeMs,
		e.StartTime, e.EndTime, e.MaxDeviation.String(), e.MarketConditions,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recording depeg event %s: %w", e.ID, err)
	}
	return nil
}

// RecentSimilar returns up to k events for asset with comparable
// magnitude, most recent first.
func (s *DepegHistoryStore) RecentSimilar(ctx context.Context, e events.DepegEvent, k int) ([]events.DepegEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lo := e.Magnitude.Mul(money.D(0.5))
	hi := e.Magnitude.Mul(money.D(1.5))

	query := `
		SELECT id, stablecoin, peg_value, avg_price, magnitude, direction, severity,
		       status, exchanges, liquidity_score, estimated_reversion_time_ms,
		       actual_reversion_time_ms, start_time, end_time, max_deviation, market_conditions
		FROM depeg_events
		WHERE stablecoin = $1 AND magnitude BETWEEN $2 AND $3 AND status IN ('resolved', 'expired')
		ORDER BY start_time DESC
		LIMIT $4`

	rows, err := s.db.QueryxContext(ctx, query, e.Stablecoin, lo.String(), hi.String(), k)
	if err != nil {
		return nil, fmt.Errorf("querying recent similar depeg events: %w", err)
	}
	defer rows.Close()

	var out []events.DepegEvent
	for rows.Next() {
		var row depegRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scanning depeg event row: %w", err)
		}
		ev, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MedianReversionTime returns the median actual reversion time across
// resolved events for asset within the given magnitude band.
func (s *DepegHistoryStore) MedianReversionTime(ctx context.Context, asset string, magnitudeLow, magnitudeHigh money.Dec) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT COALESCE(
			percentile_cont(0.5) WITHIN GROUP (ORDER BY actual_reversion_time_ms), 0
		)
		FROM depeg_events
		WHERE stablecoin = $1 AND magnitude BETWEEN $2 AND $3 AND status = 'resolved'`

	var medianMs float64
	if err := s.db.QueryRowContext(ctx, query, asset, magnitudeLow.String(), magnitudeHigh.String()).Scan(&medianMs); err != nil {
		return 0, fmt.Errorf("computing median reversion time: %w", err)
	}
	return time.Duration(medianMs) * time.Millisecond, nil
}

// SuccessRate returns the fraction of events in the band that resolved
// (rather than expired) for asset.
func (s *DepegHistoryStore) SuccessRate(ctx context.Context, asset string, magnitudeLow, magnitudeHigh money.Dec) (money.Dec, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'resolved')::float8,
			COUNT(*)::float8
		FROM depeg_events
		WHERE stablecoin = $1 AND magnitude BETWEEN $2 AND $3 AND status IN ('resolved', 'expired')`

	var resolved, total float64
	if err := s.db.QueryRowContext(ctx, query, asset, magnitudeLow.String(), magnitudeHigh.String()).Scan(&resolved, &total); err != nil {
		return money.Zero, fmt.Errorf("computing depeg success rate: %w", err)
	}
	if total == 0 {
		return money.Zero, nil
	}
	return money.D(resolved / total), nil
}
