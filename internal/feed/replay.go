package feed

import (
	"fmt"
	"sync"

	"github.com/ko0hi/papertrade/internal/engine"
)

// Replay is a scripted in-process feed. Tests and the sim binary push trades
// and set book tops by hand.
type Replay struct {
	mu     sync.Mutex // guards trades/closed
	trades chan engine.Trade
	closed bool

	topsMu sync.RWMutex
	tops   map[string]engine.BookTop
}

func NewReplay(buffer int) *Replay {
	return &Replay{
		trades: make(chan engine.Trade, buffer),
		tops:   make(map[string]engine.BookTop),
	}
}

// Push delivers one trade. Pushing after Close is a no-op.
func (r *Replay) Push(t engine.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.trades <- t
}

// SetBookTop installs the quote returned by BookTop for top.Symbol.
func (r *Replay) SetBookTop(top engine.BookTop) {
	r.topsMu.Lock()
	defer r.topsMu.Unlock()
	r.tops[top.Symbol] = top
}

// ClearBookTop removes the quote for symbol, simulating an empty book.
func (r *Replay) ClearBookTop(symbol string) {
	r.topsMu.Lock()
	defer r.topsMu.Unlock()
	delete(r.tops, symbol)
}

// Trades implements engine.TradeSubscription.
func (r *Replay) Trades() <-chan engine.Trade { return r.trades }

// Close ends the stream; the engine loop exits after draining it.
func (r *Replay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.trades)
}

// BookTop implements engine.BookTopReader.
func (r *Replay) BookTop(symbol string) (engine.BookTop, error) {
	r.topsMu.RLock()
	defer r.topsMu.RUnlock()
	top, ok := r.tops[symbol]
	if !ok {
		return engine.BookTop{}, fmt.Errorf("%w: no quote for %s", engine.ErrPriceUnavailable, symbol)
	}
	return top, nil
}
