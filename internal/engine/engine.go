// Package engine simulates order execution and position accounting against a
// market-data feed. It keeps three ledgers (resting orders, fills, net
// positions) and runs a single loop that consumes feed trades and gateway
// commands, so ledger mutation is never concurrent.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeSubscription delivers feed trades in arrival order. Close releases the
// subscription; the engine loop exits when the channel is closed.
type TradeSubscription interface {
	Trades() <-chan Trade
	Close()
}

// BookTopReader reports the current best bid/ask for a symbol. It must answer
// synchronously from local state; market-order pricing happens inline.
type BookTopReader interface {
	BookTop(symbol string) (BookTop, error)
}

// Recorder receives every completed fill. Recording failures never fail the
// fill itself.
type Recorder interface {
	RecordExecution(ctx context.Context, e Execution) error
}

type Engine struct {
	orders    *OrderLedger
	execs     *ExecutionLedger
	positions *PositionLedger

	sub  TradeSubscription
	book BookTopReader

	cmds chan command
	done chan struct{}

	rec     Recorder
	log     *zap.Logger
	feeRate decimal.Decimal
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithFeeRate sets the flat fee rate applied to the notional of every fill.
func WithFeeRate(rate decimal.Decimal) Option {
	return func(e *Engine) { e.feeRate = rate }
}

func WithCommandBuffer(n int) Option {
	return func(e *Engine) { e.cmds = make(chan command, n) }
}

func New(sub TradeSubscription, book BookTopReader, opts ...Option) *Engine {
	e := &Engine{
		orders:    NewOrderLedger(),
		execs:     NewExecutionLedger(),
		positions: NewPositionLedger(),
		sub:       sub,
		book:      book,
		cmds:      make(chan command, 64),
		done:      make(chan struct{}),
		log:       zap.NewNop(),
		feeRate:   decimal.Zero,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives the engine until ctx is cancelled or the trade stream closes.
// A trade step in progress always finishes before Run returns.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	defer e.sub.Close()

	trades := e.sub.Trades()
	for {
		select {
		case cmd := <-e.cmds:
			e.handle(ctx, cmd)
		case t, ok := <-trades:
			if !ok {
				e.log.Info("trade stream closed, stopping engine")
				return
			}
			e.step(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// step applies one trade event. Failures are contained: a bad trade or a
// panic inside matching is logged and the loop keeps consuming, because a
// dead loop would silently stop all further execution.
func (e *Engine) step(ctx context.Context, t Trade) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("matching step panicked",
				zap.Any("cause", r),
				zap.String("symbol", t.Symbol))
		}
	}()
	if err := e.applyTrade(ctx, t); err != nil {
		e.log.Warn("trade skipped",
			zap.Error(err),
			zap.String("symbol", t.Symbol))
	}
}

func (e *Engine) handle(ctx context.Context, cmd command) {
	var r result
	switch cmd.typ {
	case cmdSubmit:
		r.order, r.err = e.place(ctx, cmd.order)
	case cmdCancel:
		r.order, r.err = e.cancel(cmd.symbol, cmd.orderID)
	case cmdOrders:
		r.orders = e.orders.Find(cmd.ordPred)
	case cmdExecutions:
		r.executions = e.execs.Find(cmd.execPred)
	case cmdPosition:
		if p, ok := e.positions.Get(cmd.symbol); ok {
			r.position = &p
		}
	}
	cmd.resp <- r
}

// fill records the execution for o at px, nets it into the position, and
// removes the order, all within the current loop step so no command can
// observe a half-applied fill.
func (e *Engine) fill(ctx context.Context, o Order, px decimal.Decimal, ts time.Time) {
	exec := Execution{
		ID:         o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Price:      px,
		Size:       o.Size,
		Fee:        px.Mul(o.Size).Mul(e.feeRate),
		ExecutedAt: ts,
	}
	e.execs.Insert(exec)
	e.positions.Apply(exec)
	e.orders.Delete(o.ID)

	if e.rec != nil {
		if err := e.rec.RecordExecution(ctx, exec); err != nil {
			e.log.Warn("journal write failed",
				zap.Error(err),
				zap.String("order_id", exec.ID))
		}
	}
	e.log.Info("order filled",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.String("price", px.String()),
		zap.String("size", o.Size.String()))
}
