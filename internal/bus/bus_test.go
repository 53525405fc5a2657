package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

func tick(ex, sym string, ts time.Time) events.PriceTick {
	return events.PriceTick{Exchange: ex, Symbol: sym, Price: money.D(100), Timestamp: ts}
}

func TestPublishTickFanOutAndDedup(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeTicks(nil)
	defer unsub()

	now := time.Now()
	b.PublishTick(tick("kraken", "BTC-USD", now))
	b.PublishTick(tick("kraken", "BTC-USD", now)) // exact duplicate, suppressed

	select {
	case got := <-ch:
		assert.Equal(t, now, got.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("expected a tick")
	}
	select {
	case <-ch:
		t.Fatal("duplicate tick should have been suppressed")
	default:
	}
}

func TestPublishTickNewestWinsOnFullQueue(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeTicks(nil)
	defer unsub()

	base := time.Now()
	for i := 0; i < DefaultQueueDepth+5; i++ {
		b.PublishTick(tick("kraken", "ETH-USD", base.Add(time.Duration(i)*time.Second)))
	}

	var last events.PriceTick
	for {
		select {
		case v := <-ch:
			last = v
			continue
		default:
		}
		break
	}
	assert.Equal(t, base.Add(time.Duration(DefaultQueueDepth+4)*time.Second), last.Timestamp)
}

func TestPublishBookCoalesces(t *testing.T) {
	b := New()
	sub, unsub := b.SubscribeBooks(nil)
	defer unsub()

	ob1 := events.BuildOrderBook("kraken", "BTC-USD",
		[]events.OrderBookLevel{{Price: money.D(99), Qty: money.D(1)}},
		[]events.OrderBookLevel{{Price: money.D(101), Qty: money.D(1)}},
		time.Now())
	ob2 := events.BuildOrderBook("kraken", "BTC-USD",
		[]events.OrderBookLevel{{Price: money.D(98), Qty: money.D(1)}},
		[]events.OrderBookLevel{{Price: money.D(102), Qty: money.D(1)}},
		time.Now().Add(time.Millisecond))

	b.PublishBook(ob1)
	b.PublishBook(ob2)

	<-sub.Notify()
	got := sub.Drain()
	assert.Len(t, got, 1, "second snapshot should coalesce over the first")
	assert.True(t, got[0].BestBid.Equal(money.D(98)))
}

func TestPublishBookRejectsCrossed(t *testing.T) {
	b := New()
	sub, unsub := b.SubscribeBooks(nil)
	defer unsub()

	crossed := events.BuildOrderBook("kraken", "BTC-USD",
		[]events.OrderBookLevel{{Price: money.D(100), Qty: money.D(1)}},
		[]events.OrderBookLevel{{Price: money.D(99), Qty: money.D(1)}},
		time.Now())
	b.PublishBook(crossed)

	select {
	case <-sub.Notify():
		t.Fatal("crossed book should have been dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
