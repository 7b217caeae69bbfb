package feed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ko0hi/papertrade/internal/engine"
)

func newTestBinance() *Binance {
	return NewBinance(DefaultBinanceURL, zap.NewNop())
}

func TestParseAggTrade(t *testing.T) {
	b := newTestBinance()
	raw := []byte(`{"e":"aggTrade","E":1700000000100,"s":"BTCUSDT","a":12345,"p":"42100.50","q":"0.25","f":1,"l":2,"T":1700000000099,"m":true}`)

	require.NoError(t, b.parse(raw))

	select {
	case tr := <-b.Trades():
		assert.Equal(t, "BTCUSDT", tr.Symbol)
		assert.Equal(t, engine.SideSell, tr.Side, "buyer-maker means the aggressor sold")
		assert.True(t, tr.Price.Equal(decimal.RequireFromString("42100.50")))
		assert.True(t, tr.Size.Equal(decimal.RequireFromString("0.25")))
		assert.Equal(t, int64(1700000000099), tr.Timestamp.UnixMilli())
	default:
		t.Fatal("no trade produced")
	}
}

func TestParseAggTradeAggressorBuy(t *testing.T) {
	b := newTestBinance()
	raw := []byte(`{"e":"aggTrade","s":"BTCUSDT","p":"42100.50","q":"0.25","T":1700000000099,"m":false}`)

	require.NoError(t, b.parse(raw))

	select {
	case tr := <-b.Trades():
		assert.Equal(t, engine.SideBuy, tr.Side)
	default:
		t.Fatal("no trade produced")
	}
}

func TestParseBookTicker(t *testing.T) {
	b := newTestBinance()
	raw := []byte(`{"u":400900217,"s":"BTCUSDT","b":"42099.00","B":"3.1","a":"42101.00","A":"2.7"}`)

	require.NoError(t, b.parse(raw))

	top, err := b.BookTop("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, top.BestBid.Equal(decimal.RequireFromString("42099.00")))
	assert.True(t, top.BestAsk.Equal(decimal.RequireFromString("42101.00")))
}

func TestParseIgnoresSubscriptionAck(t *testing.T) {
	b := newTestBinance()
	require.NoError(t, b.parse([]byte(`{"result":null,"id":1}`)))

	select {
	case <-b.Trades():
		t.Fatal("ack must not produce a trade")
	default:
	}
}

func TestParseBadPayload(t *testing.T) {
	b := newTestBinance()
	assert.Error(t, b.parse([]byte(`not json`)))
	assert.Error(t, b.parse([]byte(`{"e":"aggTrade","s":"BTCUSDT","p":"not-a-number","q":"1","T":1}`)))
}

func TestBookTopUnknownSymbol(t *testing.T) {
	b := newTestBinance()
	_, err := b.BookTop("ETHUSDT")
	require.ErrorIs(t, err, engine.ErrPriceUnavailable)
}
