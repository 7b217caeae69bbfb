package engine

import "errors"

var (
	// ErrInvalidOrder rejects a submission before any ledger mutation, e.g.
	// a stop order without a trigger or a non-positive size.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrOrderNotFound is returned by cancellation when the id/symbol pair is
	// not resting, including the case where it was already executed.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPriceUnavailable means the order book is empty on the side needed to
	// price a market order.
	ErrPriceUnavailable = errors.New("execution price unavailable")

	// ErrStopped is returned by gateway calls after the engine loop exited.
	ErrStopped = errors.New("engine stopped")
)
