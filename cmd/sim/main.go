// Command sim runs the engine against a scripted replay feed and prints the
// resulting fills and position.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ko0hi/papertrade/internal/engine"
	"github.com/ko0hi/papertrade/internal/feed"
)

const symbol = "BTCUSDT"

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	src := feed.NewReplay(64)
	src.SetBookTop(engine.BookTop{
		Symbol:  symbol,
		BestBid: dec("99.5"),
		BestAsk: dec("100.5"),
	})

	eng := engine.New(src, src, engine.WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	// take the ask right away
	market, err := eng.SubmitMarketOrder(ctx, symbol, engine.SideBuy, dec("1"))
	fmt.Printf("market buy: %+v err=%v\n", market, err)

	// rest a limit below the market and a stop above it
	limit, err := eng.SubmitLimitOrder(ctx, symbol, engine.SideBuy, dec("98"), dec("0.5"))
	fmt.Printf("limit buy:  %+v err=%v\n", limit, err)
	stop, err := eng.SubmitStopMarketOrder(ctx, symbol, engine.SideSell, dec("1.5"), dec("97"))
	fmt.Printf("stop sell:  %+v err=%v\n", stop, err)

	// walk the price down through both
	for _, px := range []string{"99", "98", "97"} {
		src.SetBookTop(engine.BookTop{
			Symbol:  symbol,
			BestBid: dec(px).Sub(dec("0.5")),
			BestAsk: dec(px).Add(dec("0.5")),
		})
		src.Push(engine.Trade{
			Symbol:    symbol,
			Side:      engine.SideSell,
			Price:     dec(px),
			Size:      dec("1"),
			Timestamp: time.Now(),
		})
	}
	time.Sleep(100 * time.Millisecond)

	execs, _ := eng.Executions(ctx, nil)
	for _, e := range execs {
		fmt.Printf("fill: %s %s %s @ %s\n", e.Symbol, e.Side, e.Size, e.Price)
	}
	pos, _ := eng.Position(ctx, symbol)
	if pos == nil {
		fmt.Println("position: flat")
	} else {
		fmt.Printf("position: %s %s @ %s\n", pos.Side, pos.Size, pos.Price)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
