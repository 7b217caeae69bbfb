package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// applyTrade runs one matching step: every order resting for the trade's
// symbol at the start of the step is checked for a cross (plain limits) or a
// trigger (stops). Orders inserted mid-step, such as a promoted stop-limit,
// only become eligible from the next trade event.
func (e *Engine) applyTrade(ctx context.Context, t Trade) error {
	if t.Symbol == "" || !t.Price.IsPositive() || !t.Size.IsPositive() {
		return fmt.Errorf("malformed trade %s price=%s size=%s", t.Symbol, t.Price, t.Size)
	}

	resting := e.orders.Find(func(o Order) bool { return o.Symbol == t.Symbol })
	for _, o := range resting {
		if o.Kind.IsStop() {
			if stopTriggered(o, t) {
				e.promote(ctx, o, t)
			}
			continue
		}
		if limitCrossed(o, t) {
			// a limit fills at its own price, not the trade price
			e.fill(ctx, o, o.Price, t.Timestamp)
		}
	}
	return nil
}

// limitCrossed reports whether trade t crosses resting limit order o.
func limitCrossed(o Order, t Trade) bool {
	if o.Side == SideBuy {
		return t.Price.LessThanOrEqual(o.Price)
	}
	return t.Price.GreaterThanOrEqual(o.Price)
}

// stopTriggered reports whether trade t fires stop order o. Buy stops arm
// above the market, sell stops below.
func stopTriggered(o Order, t Trade) bool {
	if o.Side == SideBuy {
		return t.Price.GreaterThanOrEqual(o.Trigger)
	}
	return t.Price.LessThanOrEqual(o.Trigger)
}

// promote rewrites a fired stop order to its plain equivalent, keeping its
// id. A stop-limit rests as a limit order; a stop-market resolves right away
// against the current book top.
func (e *Engine) promote(ctx context.Context, o Order, t Trade) {
	e.orders.Delete(o.ID)
	o.Trigger = decimal.Zero

	switch o.Kind {
	case KindStopLimit:
		o.Kind = KindLimit
		e.orders.Insert(&o)
		e.log.Info("stop order promoted",
			zap.String("order_id", o.ID),
			zap.String("symbol", o.Symbol),
			zap.String("kind", string(o.Kind)))
	case KindStopMarket:
		o.Kind = KindMarket
		if err := e.executeMarket(ctx, &o, t.Timestamp); err != nil {
			// the stop already fired, so the order is spent either way
			e.log.Warn("triggered stop-market not executed",
				zap.Error(err),
				zap.String("order_id", o.ID),
				zap.String("symbol", o.Symbol))
		}
	}
}

// executeMarket prices o off the current book top and fills it immediately.
// Nothing is written if the required book side is empty.
func (e *Engine) executeMarket(ctx context.Context, o *Order, ts time.Time) error {
	top, err := e.book.BookTop(o.Symbol)
	if err != nil {
		return err
	}

	px := top.BestBid
	if o.Side == SideBuy {
		px = top.BestAsk
	}
	if !px.IsPositive() {
		return fmt.Errorf("%w: empty %s side for %s", ErrPriceUnavailable, o.Side.Opposite(), o.Symbol)
	}

	e.orders.Insert(o)
	e.fill(ctx, *o, px, ts)
	return nil
}
