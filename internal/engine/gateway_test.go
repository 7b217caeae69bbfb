package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestEngine runs the loop so gateway calls resolve like in production.
func startTestEngine(t *testing.T, tops map[string]BookTop, opts ...Option) (*Engine, *stubFeed) {
	t.Helper()
	src := newStubFeed()
	e := New(src, stubBook{tops: tops}, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)
	return e, src
}

func TestSubmitLimitOrderRests(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	resp, err := e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	require.NotEmpty(t, resp.OrderID)

	orders, err := e.Orders(ctx, nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, resp.OrderID, orders[0].ID)
	assert.Equal(t, KindLimit, orders[0].Kind)
	assert.True(t, orders[0].Price.Equal(dec("10")))

	execs, err := e.Executions(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestSubmitStopOrdersRest(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	sl, err := e.SubmitStopLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"), dec("11"))
	require.NoError(t, err)
	sm, err := e.SubmitStopMarketOrder(ctx, "BTCUSDT", SideSell, dec("1"), dec("9"))
	require.NoError(t, err)

	orders, err := e.Orders(ctx, nil)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, sl.OrderID, orders[0].ID)
	assert.Equal(t, KindStopLimit, orders[0].Kind)
	assert.Equal(t, sm.OrderID, orders[1].ID)
	assert.Equal(t, KindStopMarket, orders[1].Kind)
}

func TestSubmitMarketOrderResolvesBeforeReturn(t *testing.T) {
	e, _ := startTestEngine(t, map[string]BookTop{
		"BTCUSDT": {Symbol: "BTCUSDT", BestBid: dec("99"), BestAsk: dec("101")},
	})
	ctx := context.Background()

	resp, err := e.SubmitMarketOrder(ctx, "BTCUSDT", SideBuy, dec("2"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	orders, err := e.Orders(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, orders, "market orders never rest")

	execs, err := e.Executions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, resp.OrderID, execs[0].ID)
	assert.True(t, execs[0].Price.Equal(dec("101")), "buy takes the ask")

	pos, err := e.Position(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, SideBuy, pos.Side)
	assert.True(t, pos.Size.Equal(dec("2")))
}

func TestSubmitMarketSellUsesBestBid(t *testing.T) {
	e, _ := startTestEngine(t, map[string]BookTop{
		"BTCUSDT": {Symbol: "BTCUSDT", BestBid: dec("99"), BestAsk: dec("101")},
	})
	ctx := context.Background()

	resp, err := e.SubmitMarketOrder(ctx, "BTCUSDT", SideSell, dec("1"))
	require.NoError(t, err)

	execs, err := e.Executions(ctx, func(x Execution) bool { return x.ID == resp.OrderID })
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.True(t, execs[0].Price.Equal(dec("99")))
}

func TestSubmitMarketOrderEmptyBook(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	resp, err := e.SubmitMarketOrder(ctx, "BTCUSDT", SideBuy, dec("1"))
	require.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Equal(t, 500, resp.Status)

	// no residue on any ledger
	orders, _ := e.Orders(ctx, nil)
	assert.Empty(t, orders)
	execs, _ := e.Executions(ctx, nil)
	assert.Empty(t, execs)
	pos, _ := e.Position(ctx, "BTCUSDT")
	assert.Nil(t, pos)
}

func TestSubmitValidation(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	_, err := e.SubmitStopLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidOrder, "stop without trigger")

	_, err = e.SubmitStopMarketOrder(ctx, "BTCUSDT", SideSell, dec("1"), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidOrder, "stop-market without trigger")

	_, err = e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidOrder, "zero size")

	_, err = e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, decimal.Zero, dec("1"))
	require.ErrorIs(t, err, ErrInvalidOrder, "limit without price")

	_, err = e.SubmitLimitOrder(ctx, "", SideBuy, dec("10"), dec("1"))
	require.ErrorIs(t, err, ErrInvalidOrder, "missing symbol")

	orders, _ := e.Orders(ctx, nil)
	assert.Empty(t, orders, "rejected submissions never touch the ledger")
}

func TestCancelOrder(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	resp, err := e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"))
	require.NoError(t, err)

	cancel, err := e.CancelOrder(ctx, "BTCUSDT", resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 200, cancel.Status)

	orders, _ := e.Orders(ctx, nil)
	assert.Empty(t, orders)

	// second cancel observes it missing
	cancel, err = e.CancelOrder(ctx, "BTCUSDT", resp.OrderID)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 500, cancel.Status)
}

func TestCancelWrongSymbol(t *testing.T) {
	e, _ := startTestEngine(t, nil)
	ctx := context.Background()

	resp, err := e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"))
	require.NoError(t, err)

	_, err = e.CancelOrder(ctx, "ETHUSDT", resp.OrderID)
	require.ErrorIs(t, err, ErrOrderNotFound)

	orders, _ := e.Orders(ctx, nil)
	assert.Len(t, orders, 1, "order under the real symbol stays")
}

func TestCancelAfterFill(t *testing.T) {
	e, src := startTestEngine(t, nil)
	ctx := context.Background()

	resp, err := e.SubmitLimitOrder(ctx, "BTCUSDT", SideBuy, dec("10"), dec("1"))
	require.NoError(t, err)

	src.ch <- testTrade("BTCUSDT", "9")
	require.Eventually(t, func() bool {
		execs, err := e.Executions(ctx, nil)
		return err == nil && len(execs) == 1
	}, time.Second, 5*time.Millisecond)

	orders, _ := e.Orders(ctx, nil)
	assert.Empty(t, orders, "order consumed by the matching step")

	cancel, err := e.CancelOrder(ctx, "BTCUSDT", resp.OrderID)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 500, cancel.Status)

	orders, _ = e.Orders(ctx, nil)
	assert.Empty(t, orders)
}

func TestFlatFeeApplied(t *testing.T) {
	e, _ := startTestEngine(t, map[string]BookTop{
		"BTCUSDT": {Symbol: "BTCUSDT", BestBid: dec("99"), BestAsk: dec("100")},
	}, WithFeeRate(dec("0.001")))
	ctx := context.Background()

	_, err := e.SubmitMarketOrder(ctx, "BTCUSDT", SideBuy, dec("2"))
	require.NoError(t, err)

	execs, err := e.Executions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.True(t, execs[0].Fee.Equal(dec("0.2")), "fee %s", execs[0].Fee)
}

func TestGatewayAfterStop(t *testing.T) {
	src := newStubFeed()
	e := New(src, stubBook{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, err := e.SubmitLimitOrder(context.Background(), "BTCUSDT", SideBuy, dec("10"), dec("1"))
	require.ErrorIs(t, err, ErrStopped)
}
