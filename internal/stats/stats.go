// Package stats implements the Statistics Recorder: per-detector and
// per-strategy atomic counters exposed as a read-only snapshot API. It is
// the one piece of shared mutable state the engine allows; every other
// cross-goroutine handoff goes through the bus or an atomically-swapped
// config pointer.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/riftline/ineffic-engine/internal/money"
)

// Counters is one detector or strategy's accumulated figures.
type Counters struct {
	Detections      uint64
	Classifications uint64
	TradesEntered   uint64
	TradesExitedOK  uint64
	TradesExitedErr uint64
	TotalPnLMicros  int64 // PnL accumulated in micro-dollars for lock-free atomic add
}

// Snapshot is a read-only, immutable copy of one key's counters plus
// derived figures.
type Snapshot struct {
	Detections      uint64
	Classifications uint64
	TradesEntered   uint64
	TradesExitedOK  uint64
	TradesExitedErr uint64
	TotalPnL        money.Dec
	AveragePnL      money.Dec
	SuccessRate     money.Dec
}

type entry struct {
	detections      atomic.Uint64
	classifications atomic.Uint64
	tradesEntered   atomic.Uint64
	tradesExitedOK  atomic.Uint64
	tradesExitedErr atomic.Uint64
	totalPnLMicros  atomic.Int64
}

const microsPerUnit = 1_000_000

// Recorder accumulates counters keyed by detector or strategy name.
type Recorder struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Recorder.
func New() *Recorder {
	return &Recorder{entries: make(map[string]*entry)}
}

func (r *Recorder) get(key string) *entry {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e
	}
	e = &entry{}
	r.entries[key] = e
	return e
}

// RecordDetection increments key's detection counter.
func (r *Recorder) RecordDetection(key string) { r.get(key).detections.Add(1) }

// RecordClassification increments key's classification counter.
func (r *Recorder) RecordClassification(key string) { r.get(key).classifications.Add(1) }

// RecordTradeEntered increments key's entered-trade counter.
func (r *Recorder) RecordTradeEntered(key string) { r.get(key).tradesEntered.Add(1) }

// RecordTradeExited increments the success or failure exit counter and
// accumulates PnL (sub-micro-dollar precision is truncated).
func (r *Recorder) RecordTradeExited(key string, success bool, pnl money.Dec) {
	e := r.get(key)
	if success {
		e.tradesExitedOK.Add(1)
	} else {
		e.tradesExitedErr.Add(1)
	}
	scaled := pnl.Mul(money.D(microsPerUnit))
	e.totalPnLMicros.Add(scaled.IntPart())
}

// Snapshot returns an immutable copy of key's current counters, or the
// zero Snapshot if key has never been recorded.
func (r *Recorder) Snapshot(key string) Snapshot {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}
	}
	return snapshotOf(e)
}

func snapshotOf(e *entry) Snapshot {
	exitedOK := e.tradesExitedOK.Load()
	exitedErr := e.tradesExitedErr.Load()
	totalExited := exitedOK + exitedErr

	totalPnL := money.D(float64(e.totalPnLMicros.Load()) / microsPerUnit)
	avgPnL := money.Zero
	if totalExited > 0 {
		avgPnL = totalPnL.Div(money.D(float64(totalExited)))
	}
	successRate := money.Zero
	if totalExited > 0 {
		successRate = money.D(float64(exitedOK) / float64(totalExited))
	}

	return Snapshot{
		Detections:      e.detections.Load(),
		Classifications: e.classifications.Load(),
		TradesEntered:   e.tradesEntered.Load(),
		TradesExitedOK:  exitedOK,
		TradesExitedErr: exitedErr,
		TotalPnL:        totalPnL,
		AveragePnL:      avgPnL,
		SuccessRate:     successRate,
	}
}

// All returns a snapshot of every key currently tracked.
func (r *Recorder) All() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.entries))
	for k, e := range r.entries {
		out[k] = snapshotOf(e)
	}
	return out
}
