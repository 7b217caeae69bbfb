package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind is the closed set of supported order kinds. Stop kinds carry a
// trigger price until promotion rewrites them to their plain equivalent.
type OrderKind string

const (
	KindLimit      OrderKind = "LIMIT"
	KindMarket     OrderKind = "MARKET"
	KindStopLimit  OrderKind = "STOP_LIMIT"
	KindStopMarket OrderKind = "STOP_MARKET"
)

func ParseOrderKind(s string) (OrderKind, error) {
	switch OrderKind(s) {
	case KindLimit, KindMarket, KindStopLimit, KindStopMarket:
		return OrderKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown order kind %q", ErrInvalidOrder, s)
}

// IsStop reports whether the kind still awaits a trigger.
func (k OrderKind) IsStop() bool {
	return k == KindStopLimit || k == KindStopMarket
}

// Order is a resting order. Price is zero for market orders; Trigger is set
// only while Kind is a stop kind and is cleared on promotion.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Kind      OrderKind       `json:"kind"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Trigger   decimal.Decimal `json:"trigger"`
	CreatedAt time.Time       `json:"created_at"`
}

// Execution is a completed fill. Its ID is the originating order's ID and it
// is never mutated after insertion.
type Execution struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Fee        decimal.Decimal `json:"fee"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// Position is the single net row for a symbol. Price is the weighted-average
// entry price. An absent row means flat.
type Position struct {
	Symbol string          `json:"symbol"`
	Side   Side            `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
}

// Trade is a market trade delivered by the data feed. Side is the aggressor
// side as reported by the venue; matching uses only price and time.
type Trade struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Timestamp time.Time       `json:"timestamp"`
}

// BookTop is the best bid/ask snapshot for a symbol. A zero price means that
// side of the book is empty.
type BookTop struct {
	Symbol  string          `json:"symbol"`
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
}
