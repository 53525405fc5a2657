// Package wsfeed implements a reference gorilla/websocket market-data
// adapter: dial-with-timeout, a message loop goroutine feeding typed
// channels, ping keepalive, and a reconnect signal channel. It decodes
// this engine's PriceTick/OrderBook JSON wire schema directly, rather
// than a venue-specific array-framed protocol.
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/money"
)

const (
	handshakeTimeout = 15 * time.Second
	readDeadline     = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// wireTick and wireBookLevel/wireBook mirror the JSON frames the venue
// sends; money fields arrive as decimal strings and are parsed at the
// boundary via money.D-equivalent decimal parsing.
type wireTick struct {
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Price     string  `json:"price"`
	Volume24h string  `json:"volume_24h"`
	Liquidity string  `json:"liquidity"`
	Timestamp int64   `json:"ts_ms"`
}

type wireLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

type wireBook struct {
	Exchange  string      `json:"exchange"`
	Pair      string      `json:"pair"`
	Bids      []wireLevel `json:"bids"`
	Asks      []wireLevel `json:"asks"`
	Timestamp int64       `json:"ts_ms"`
}

type wireFrame struct {
	Type  string     `json:"type"`
	Tick  *wireTick  `json:"tick,omitempty"`
	Book  *wireBook  `json:"book,omitempty"`
}

// Client is a single-venue websocket feed that decodes inbound frames
// into PriceTick/OrderBook events and publishes them onto its channels.
type Client struct {
	url string
	log zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closeCh   chan struct{}

	ticks chan events.PriceTick
	books chan events.OrderBook
	recon chan struct{}
}

// New constructs a Client targeting the given websocket URL.
func New(wsURL string, log zerolog.Logger) *Client {
	return &Client{
		url:     wsURL,
		log:     log.With().Str("component", "wsfeed").Str("url", wsURL).Logger(),
		closeCh: make(chan struct{}),
		ticks:   make(chan events.PriceTick, 256),
		books:   make(chan events.OrderBook, 256),
		recon:   make(chan struct{}, 1),
	}
}

// Ticks returns the channel of decoded PriceTicks.
func (c *Client) Ticks() <-chan events.PriceTick { return c.ticks }

// Books returns the channel of decoded OrderBooks.
func (c *Client) Books() <-chan events.OrderBook { return c.books }

// Reconnect signals when the connection has dropped and needs redialing.
func (c *Client) Reconnect() <-chan struct{} { return c.recon }

// Connect dials the feed and starts the read/ping loops in background
// goroutines. It returns once the handshake completes.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return fmt.Errorf("wsfeed: already connected to %s", c.url)
	}

	if _, err := url.Parse(c.url); err != nil {
		return fmt.Errorf("wsfeed: invalid url %s: %w", c.url, err)
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("wsfeed: dial %s: %w", c.url, err)
	}

	c.conn = conn
	c.connected = true
	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	c.log.Info().Msg("connected")
	return nil
}

// Close terminates the connection and stops background loops.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	close(c.closeCh)
	err := c.conn.Close()
	c.connected = false
	return err
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("wsfeed read loop panic")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("connection closed unexpectedly")
				c.triggerReconnect()
				return
			}
			c.log.Error().Err(err).Msg("read error")
			continue
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := c.dispatch(data); err != nil {
			c.log.Error().Err(err).Msg("dispatch failed")
		}
	}
}

func (c *Client) dispatch(data []byte) error {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}

	switch frame.Type {
	case "tick":
		if frame.Tick == nil {
			return fmt.Errorf("tick frame missing payload")
		}
		t, err := decodeTick(*frame.Tick)
		if err != nil {
			return err
		}
		select {
		case c.ticks <- t:
		default:
			c.log.Warn().Str("symbol", t.Symbol).Msg("tick channel full, dropping")
		}
	case "book":
		if frame.Book == nil {
			return fmt.Errorf("book frame missing payload")
		}
		ob, err := decodeBook(*frame.Book)
		if err != nil {
			return err
		}
		select {
		case c.books <- ob:
		default:
			c.log.Warn().Str("pair", ob.Pair).Msg("book channel full, dropping")
		}
	default:
		c.log.Debug().Str("type", frame.Type).Msg("unrecognized frame type")
	}
	return nil
}

func decodeTick(w wireTick) (events.PriceTick, error) {
	price, err := parseDec(w.Price)
	if err != nil {
		return events.PriceTick{}, fmt.Errorf("tick price: %w", err)
	}
	vol, _ := parseDec(w.Volume24h)
	liq, _ := parseDec(w.Liquidity)
	return events.PriceTick{
		Exchange:  w.Exchange,
		Symbol:    w.Symbol,
		Price:     price,
		Volume24h: vol,
		Liquidity: liq,
		Timestamp: time.UnixMilli(w.Timestamp),
	}, nil
}

func decodeBook(w wireBook) (events.OrderBook, error) {
	bids, bidLiq, err := decodeLevels(w.Bids)
	if err != nil {
		return events.OrderBook{}, fmt.Errorf("book bids: %w", err)
	}
	asks, askLiq, err := decodeLevels(w.Asks)
	if err != nil {
		return events.OrderBook{}, fmt.Errorf("book asks: %w", err)
	}

	var bestBid, bestAsk money.Dec = money.Zero, money.Zero
	if len(bids) > 0 {
		bestBid = bids[0].Price
	}
	if len(asks) > 0 {
		bestAsk = asks[0].Price
	}
	spread := bestAsk.Sub(bestBid)
	spreadPct := money.Zero
	if !bestBid.IsZero() {
		spreadPct = spread.Div(bestBid)
	}

	return events.OrderBook{
		Exchange:    w.Exchange,
		Pair:        w.Pair,
		Bids:        bids,
		Asks:        asks,
		BestBid:     bestBid,
		BestAsk:     bestAsk,
		Spread:      spread,
		SpreadPct:   spreadPct,
		TotalBidLiq: bidLiq,
		TotalAskLiq: askLiq,
		Timestamp:   time.UnixMilli(w.Timestamp),
	}, nil
}

func decodeLevels(levels []wireLevel) ([]events.OrderBookLevel, money.Dec, error) {
	out := make([]events.OrderBookLevel, 0, len(levels))
	cumQty := money.Zero
	cumValue := money.Zero
	for _, l := range levels {
		price, err := parseDec(l.Price)
		if err != nil {
			return nil, money.Zero, err
		}
		qty, err := parseDec(l.Qty)
		if err != nil {
			return nil, money.Zero, err
		}
		cumQty = cumQty.Add(qty)
		cumValue = cumValue.Add(price.Mul(qty))
		out = append(out, events.OrderBookLevel{
			Price: price, Qty: qty, CumulativeQty: cumQty, CumulativeValue: cumValue,
		})
	}
	return out, cumQty, nil
}

func parseDec(s string) (money.Dec, error) {
	if s == "" {
		return money.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return money.Zero, fmt.Errorf("parsing decimal %q: %w", s, err)
	}
	return d, nil
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.log.Error().Err(err).Msg("ping failed")
				c.triggerReconnect()
				return
			}
		}
	}
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return fmt.Errorf("wsfeed: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Client) triggerReconnect() {
	select {
	case c.recon <- struct{}{}:
	default:
	}
}
