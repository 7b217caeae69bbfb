package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderResponse is the synchronous reply to every gateway call. Status is an
// HTTP-style code: 200 on success, 500 on failure.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  int    `json:"status"`
}

// SubmitLimitOrder rests a limit order. The order is visible to queries as
// soon as the call returns.
func (e *Engine) SubmitLimitOrder(ctx context.Context, symbol string, side Side, price, size decimal.Decimal) (OrderResponse, error) {
	o := e.newOrder(symbol, side, KindLimit, price, size, decimal.Zero)
	return e.submit(ctx, o)
}

// SubmitMarketOrder executes immediately against the current book top: a buy
// takes the best ask, a sell the best bid. The fill is fully applied before
// the call returns; nothing rests.
func (e *Engine) SubmitMarketOrder(ctx context.Context, symbol string, side Side, size decimal.Decimal) (OrderResponse, error) {
	o := e.newOrder(symbol, side, KindMarket, decimal.Zero, size, decimal.Zero)
	return e.submit(ctx, o)
}

// SubmitStopLimitOrder rests a stop order that becomes a limit order at price
// once a trade reaches trigger.
func (e *Engine) SubmitStopLimitOrder(ctx context.Context, symbol string, side Side, price, size, trigger decimal.Decimal) (OrderResponse, error) {
	o := e.newOrder(symbol, side, KindStopLimit, price, size, trigger)
	return e.submit(ctx, o)
}

// SubmitStopMarketOrder rests a stop order that executes at the book top once
// a trade reaches trigger.
func (e *Engine) SubmitStopMarketOrder(ctx context.Context, symbol string, side Side, size, trigger decimal.Decimal) (OrderResponse, error) {
	o := e.newOrder(symbol, side, KindStopMarket, decimal.Zero, size, trigger)
	return e.submit(ctx, o)
}

// CancelOrder removes a resting order. An id that is not resting, including
// one consumed by a matching step before this call was handled, reports
// ErrOrderNotFound with status 500.
func (e *Engine) CancelOrder(ctx context.Context, symbol, orderID string) (OrderResponse, error) {
	r, err := e.send(ctx, command{typ: cmdCancel, symbol: symbol, orderID: orderID})
	if err != nil {
		return OrderResponse{OrderID: orderID, Status: http.StatusInternalServerError}, err
	}
	return r.order, r.err
}

// Orders returns resting orders matching pred; nil matches all.
func (e *Engine) Orders(ctx context.Context, pred OrderPredicate) ([]Order, error) {
	r, err := e.send(ctx, command{typ: cmdOrders, ordPred: pred})
	if err != nil {
		return nil, err
	}
	return r.orders, nil
}

// Executions returns completed fills matching pred; nil matches all.
func (e *Engine) Executions(ctx context.Context, pred ExecutionPredicate) ([]Execution, error) {
	r, err := e.send(ctx, command{typ: cmdExecutions, execPred: pred})
	if err != nil {
		return nil, err
	}
	return r.executions, nil
}

// Position returns the net position for symbol, or nil when flat.
func (e *Engine) Position(ctx context.Context, symbol string) (*Position, error) {
	r, err := e.send(ctx, command{typ: cmdPosition, symbol: symbol})
	if err != nil {
		return nil, err
	}
	return r.position, nil
}

func (e *Engine) newOrder(symbol string, side Side, kind OrderKind, price, size, trigger decimal.Decimal) *Order {
	return &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Kind:      kind,
		Price:     price,
		Size:      size,
		Trigger:   trigger,
		CreatedAt: e.now(),
	}
}

func (e *Engine) submit(ctx context.Context, o *Order) (OrderResponse, error) {
	if err := validateOrder(o); err != nil {
		return OrderResponse{OrderID: o.ID, Status: http.StatusInternalServerError}, err
	}
	r, err := e.send(ctx, command{typ: cmdSubmit, order: o})
	if err != nil {
		return OrderResponse{OrderID: o.ID, Status: http.StatusInternalServerError}, err
	}
	return r.order, r.err
}

// validateOrder runs before the command is sent, so rejected submissions
// never touch a ledger.
func validateOrder(o *Order) error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidOrder)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Size.IsPositive() {
		return fmt.Errorf("%w: size must be positive", ErrInvalidOrder)
	}
	switch o.Kind {
	case KindLimit, KindStopLimit:
		if !o.Price.IsPositive() {
			return fmt.Errorf("%w: %s requires a positive price", ErrInvalidOrder, o.Kind)
		}
	}
	if o.Kind.IsStop() && !o.Trigger.IsPositive() {
		return fmt.Errorf("%w: %s requires a trigger price", ErrInvalidOrder, o.Kind)
	}
	return nil
}

// place handles a validated submission on the engine goroutine. Market
// orders resolve before the reply; everything else rests.
func (e *Engine) place(ctx context.Context, o *Order) (OrderResponse, error) {
	if o.Kind == KindMarket {
		if err := e.executeMarket(ctx, o, e.now()); err != nil {
			return OrderResponse{OrderID: o.ID, Status: http.StatusInternalServerError}, err
		}
		return OrderResponse{OrderID: o.ID, Status: http.StatusOK}, nil
	}
	e.orders.Insert(o)
	return OrderResponse{OrderID: o.ID, Status: http.StatusOK}, nil
}

func (e *Engine) cancel(symbol, orderID string) (OrderResponse, error) {
	o, ok := e.orders.Get(orderID)
	if !ok || o.Symbol != symbol {
		return OrderResponse{OrderID: orderID, Status: http.StatusInternalServerError},
			fmt.Errorf("%w: %s/%s", ErrOrderNotFound, symbol, orderID)
	}
	e.orders.Delete(orderID)
	return OrderResponse{OrderID: orderID, Status: http.StatusOK}, nil
}

// send serializes a command through the engine loop and waits for its reply.
func (e *Engine) send(ctx context.Context, cmd command) (result, error) {
	cmd.resp = make(chan result, 1)
	select {
	case e.cmds <- cmd:
	case <-e.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case r := <-cmd.resp:
		return r, nil
	case <-e.done:
		// the loop may have replied just before exiting
		select {
		case r := <-cmd.resp:
			return r, nil
		default:
			return result{}, ErrStopped
		}
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}
