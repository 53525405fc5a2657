// Package bus implements the Price Feed Bus: a
// fan-out multiplexer for PriceTicks and OrderBooks with per-subscriber
// bounded queues, newest-wins drop for ticks, coalescing for order books,
// and a short duplicate-suppression window.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/events"
)

// DefaultQueueDepth bounds each subscriber's tick channel. Once full, a new
// tick replaces the queued one rather than blocking the publisher
// (newest-tick-wins).
const DefaultQueueDepth = 64

// DedupeWindow bounds PublishTick's duplicate check against the last tick
// seen for a given (exchange, symbol) pair. A tick whose timestamp is not
// after that last one always falls inside it, so exact duplicates and
// older, out-of-order ticks are both dropped.
const DedupeWindow = time.Second

type tickSub struct {
	ch     chan events.PriceTick
	filter func(events.PriceTick) bool
}

type bookSub struct {
	mu      sync.Mutex
	pending map[string]events.OrderBook // keyed by exchange|pair, coalesced
	notify  chan struct{}
	filter  func(events.OrderBook) bool
}

// Bus multiplexes a single upstream feed to many subscribers.
type Bus struct {
	log zerolog.Logger

	mu        sync.Mutex
	tickSubs  map[int]*tickSub
	bookSubs  map[int]*bookSub
	nextID    int
	lastSeen  map[string]time.Time // exchange|symbol -> last tick timestamp
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		log:      log.With().Str("component", "bus").Logger(),
		tickSubs: make(map[int]*tickSub),
		bookSubs: make(map[int]*bookSub),
		lastSeen: make(map[string]time.Time),
	}
}

// SubscribeTicks registers a new tick subscriber. filter may be nil to
// accept every tick. The returned channel has DefaultQueueDepth capacity;
// the caller must drain it or risk dropped (overwritten) ticks.
func (b *Bus) SubscribeTicks(filter func(events.PriceTick) bool) (<-chan events.PriceTick, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &tickSub{ch: make(chan events.PriceTick, DefaultQueueDepth), filter: filter}
	b.tickSubs[id] = sub
	return sub.ch, func() { b.unsubTick(id) }
}

func (b *Bus) unsubTick(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.tickSubs[id]; ok {
		close(sub.ch)
		delete(b.tickSubs, id)
	}
}

// SubscribeBooks registers a coalescing order-book subscriber: the notify
// channel fires whenever new data is available, and Latest returns (and
// clears) the most recent book per exchange/pair since the last call.
func (b *Bus) SubscribeBooks(filter func(events.OrderBook) bool) (*BookSubscription, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &bookSub{pending: make(map[string]events.OrderBook), notify: make(chan struct{}, 1), filter: filter}
	b.bookSubs[id] = sub
	return &BookSubscription{sub: sub}, func() { b.unsubBook(id) }
}

func (b *Bus) unsubBook(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bookSubs, id)
}

// BookSubscription is a coalescing handle returned by SubscribeBooks.
type BookSubscription struct {
	sub *bookSub
}

// Notify signals when at least one book is pending.
func (s *BookSubscription) Notify() <-chan struct{} { return s.sub.notify }

// Drain returns and clears all pending, coalesced order books.
func (s *BookSubscription) Drain() []events.OrderBook {
	s.sub.mu.Lock()
	defer s.sub.mu.Unlock()
	out := make([]events.OrderBook, 0, len(s.sub.pending))
	for _, ob := range s.sub.pending {
		out = append(out, ob)
	}
	s.sub.pending = make(map[string]events.OrderBook)
	return out
}

// PublishTick fans a tick out to every matching subscriber, dropping any
// tick whose timestamp is not after the last one seen for its exchange and
// symbol, and overwriting (not blocking on) a full subscriber queue.
func (b *Bus) PublishTick(t events.PriceTick) {
	b.mu.Lock()
	key := t.Exchange + "|" + t.Symbol
	if last, ok := b.lastSeen[key]; ok {
		if t.Timestamp.Sub(last) < DedupeWindow && !t.Timestamp.After(last) {
			b.mu.Unlock()
			return
		}
	}
	b.lastSeen[key] = t.Timestamp
	subs := make([]*tickSub, 0, len(b.tickSubs))
	for _, s := range b.tickSubs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter(t) {
			continue
		}
		select {
		case s.ch <- t:
		default:
			// Queue full: drop the oldest queued tick, newest wins.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- t:
			default:
			}
		}
	}
}

// PublishBook coalesces an order book snapshot into each matching
// subscriber's pending map, keyed by exchange/pair so only the latest
// snapshot per pair survives between Drain calls.
func (b *Bus) PublishBook(ob events.OrderBook) {
	if !ob.Valid() {
		b.log.Warn().Str("exchange", ob.Exchange).Str("pair", ob.Pair).Msg("dropping invalid order book")
		return
	}
	b.mu.Lock()
	subs := make([]*bookSub, 0, len(b.bookSubs))
	for _, s := range b.bookSubs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	key := ob.Exchange + "|" + ob.Pair
	for _, s := range subs {
		if s.filter != nil && !s.filter(ob) {
			continue
		}
		s.mu.Lock()
		s.pending[key] = ob
		s.mu.Unlock()
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}
