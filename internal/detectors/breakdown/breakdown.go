// Package breakdown runs the Correlation Store's breakdown check for a
// pair each time Evaluate is called, tracking each pair's
// CorrelationBreakdownEvent lifecycle so repeated
// detections update the same record instead of creating duplicates.
package breakdown

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/correlation"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

// SeriesFunc supplies the recent, short-horizon return series for a pair's
// reference and altcoin legs as of now.
type SeriesFunc func(pair string, now time.Time) (ref, alt correlation.ReturnSeries, confidence money.Dec, ok bool)

// Detector runs the correlation store's breakdown check for one pair per
// Evaluate call; the caller sets the cadence.
type Detector struct {
	store  *correlation.Store
	series SeriesFunc
	log    zerolog.Logger

	active map[string]*events.CorrelationBreakdownEvent
}

// New creates a Detector backed by store, pulling recent series via series.
func New(store *correlation.Store, series SeriesFunc) *Detector {
	return &Detector{
		store:  store,
		series: series,
		log:    log.With().Str("component", "breakdown_detector").Logger(),
		active: make(map[string]*events.CorrelationBreakdownEvent),
	}
}

// Evaluate runs the breakdown check for one pair, returning an event if
// one is active (new, updated, or reverted) and a bool indicating whether
// anything changed.
func (d *Detector) Evaluate(pair string, now time.Time) (*events.CorrelationBreakdownEvent, bool) {
	ref, alt, confidence, ok := d.series(pair, now)
	if !ok {
		return nil, false
	}

	ev, breaking := d.store.CheckBreakdown(pair, ref, alt, confidence, now)
	existing, hasExisting := d.active[pair]

	switch {
	case breaking && !hasExisting:
		ev.ID = uuid.NewString()
		d.active[pair] = &ev
		d.log.Info().Str("pair", pair).Str("deviation", ev.Deviation.String()).Msg("correlation breakdown detected")
		return &ev, true

	case breaking && hasExisting:
		changed := !existing.CurrentCorrelation.Equal(ev.CurrentCorrelation) ||
			!existing.Deviation.Equal(ev.Deviation) ||
			existing.ExpectedReversionTimeMs != ev.ExpectedReversionTimeMs ||
			!existing.Confidence.Equal(ev.Confidence)
		existing.CurrentCorrelation = ev.CurrentCorrelation
		existing.Deviation = ev.Deviation
		existing.ExpectedReversionTimeMs = ev.ExpectedReversionTimeMs
		existing.Confidence = ev.Confidence
		return existing, changed

	case !breaking && hasExisting:
		existing.Status = events.BreakdownReverted
		snap := *existing
		delete(d.active, pair)
		d.log.Info().Str("pair", pair).Msg("correlation breakdown reverted")
		return &snap, true

	default:
		return nil, false
	}
}
