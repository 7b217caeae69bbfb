// Package feed provides market-data sources for the engine: a live Binance
// websocket adapter and a scripted replay source for tests and offline runs.
// Both satisfy the engine's TradeSubscription and BookTopReader interfaces.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ko0hi/papertrade/internal/engine"
)

const DefaultBinanceURL = "wss://stream.binance.com:9443/ws"

// Binance streams aggTrade events as engine trades and keeps the latest
// bookTicker quote per symbol to answer BookTop.
type Binance struct {
	ws     *wsClient
	log    *zap.Logger
	trades chan engine.Trade

	mu      sync.RWMutex
	tops    map[string]engine.BookTop
	symbols []string
}

func NewBinance(url string, log *zap.Logger) *Binance {
	b := &Binance{
		log:    log,
		trades: make(chan engine.Trade, 4096),
		tops:   make(map[string]engine.BookTop),
	}
	b.ws = newWSClient("binance", url, log)
	b.ws.onConnect = b.resubscribe
	return b
}

// Connect dials the stream and starts the parse loop. Subscribe must be
// called afterwards for data to flow.
func (b *Binance) Connect(ctx context.Context) error {
	if err := b.ws.connect(ctx); err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	go b.parseLoop()
	return nil
}

// Subscribe asks for aggTrade and bookTicker streams for each symbol.
func (b *Binance) Subscribe(symbols []string) error {
	b.mu.Lock()
	b.symbols = append(b.symbols[:0], symbols...)
	b.mu.Unlock()

	return b.sendSubscribe(symbols)
}

func (b *Binance) sendSubscribe(symbols []string) error {
	params := make([]string, 0, 2*len(symbols))
	for _, s := range symbols {
		s = strings.ToLower(s)
		params = append(params, s+"@aggTrade", s+"@bookTicker")
	}
	payload, err := json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	b.ws.send <- payload
	return nil
}

func (b *Binance) resubscribe() {
	b.mu.RLock()
	symbols := append([]string(nil), b.symbols...)
	b.mu.RUnlock()
	if len(symbols) == 0 {
		return
	}
	if err := b.sendSubscribe(symbols); err != nil {
		b.log.Warn("resubscribe failed", zap.Error(err))
	}
}

// Trades implements engine.TradeSubscription.
func (b *Binance) Trades() <-chan engine.Trade { return b.trades }

// Close tears the connection down; the trade channel closes once the parse
// loop drains.
func (b *Binance) Close() { b.ws.close() }

// BookTop implements engine.BookTopReader from the cached bookTicker quote.
func (b *Binance) BookTop(symbol string) (engine.BookTop, error) {
	b.mu.RLock()
	top, ok := b.tops[symbol]
	b.mu.RUnlock()
	if !ok {
		return engine.BookTop{}, fmt.Errorf("%w: no quote for %s", engine.ErrPriceUnavailable, symbol)
	}
	return top, nil
}

func (b *Binance) parseLoop() {
	defer close(b.trades)
	for raw := range b.ws.recv {
		if err := b.parse(raw); err != nil {
			b.log.Warn("message dropped", zap.Error(err))
		}
	}
}

type binanceAggTrade struct {
	Symbol     string `json:"s"`
	Price      string `json:"p"`
	Qty        string `json:"q"`
	BuyerMaker bool   `json:"m"`
	TradeTime  int64  `json:"T"`
}

type binanceBookTicker struct {
	Symbol  string `json:"s"`
	BidPx   string `json:"b"`
	BidQty  string `json:"B"`
	AskPx   string `json:"a"`
	AskQty  string `json:"A"`
}

func (b *Binance) parse(raw []byte) error {
	var probe struct {
		Event string `json:"e"`
		// bookTicker frames carry no event type, only an order-book update id
		UpdateID *int64 `json:"u"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("bad frame: %w", err)
	}

	switch {
	case probe.Event == "aggTrade":
		var m binanceAggTrade
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		t, err := m.toTrade()
		if err != nil {
			return err
		}
		select {
		case b.trades <- t:
		default:
			// consumer is behind; dropping keeps the socket healthy
		}
	case probe.UpdateID != nil:
		var m binanceBookTicker
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		return b.updateTop(m)
	}
	// subscription acks and unknown events are ignored
	return nil
}

func (m binanceAggTrade) toTrade() (engine.Trade, error) {
	price, err := decimal.NewFromString(m.Price)
	if err != nil {
		return engine.Trade{}, fmt.Errorf("aggTrade price %q: %w", m.Price, err)
	}
	size, err := decimal.NewFromString(m.Qty)
	if err != nil {
		return engine.Trade{}, fmt.Errorf("aggTrade qty %q: %w", m.Qty, err)
	}
	// when the buyer is the maker, the aggressor sold
	side := engine.SideBuy
	if m.BuyerMaker {
		side = engine.SideSell
	}
	return engine.Trade{
		Symbol:    m.Symbol,
		Side:      side,
		Price:     price,
		Size:      size,
		Timestamp: time.UnixMilli(m.TradeTime),
	}, nil
}

func (b *Binance) updateTop(m binanceBookTicker) error {
	bid, err := decimal.NewFromString(m.BidPx)
	if err != nil {
		return fmt.Errorf("bookTicker bid %q: %w", m.BidPx, err)
	}
	ask, err := decimal.NewFromString(m.AskPx)
	if err != nil {
		return fmt.Errorf("bookTicker ask %q: %w", m.AskPx, err)
	}
	b.mu.Lock()
	b.tops[m.Symbol] = engine.BookTop{Symbol: m.Symbol, BestBid: bid, BestAsk: ask}
	b.mu.Unlock()
	return nil
}
