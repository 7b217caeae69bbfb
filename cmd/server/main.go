package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/ko0hi/papertrade/internal/config"
	"github.com/ko0hi/papertrade/internal/engine"
	"github.com/ko0hi/papertrade/internal/feed"
	"github.com/ko0hi/papertrade/internal/journal"
)

type placeOrderRequest struct {
	Symbol  string `json:"symbol"`
	Side    string `json:"side"`    // "BUY" | "SELL"
	Kind    string `json:"kind"`    // "LIMIT" | "MARKET" | "STOP_LIMIT" | "STOP_MARKET"
	Price   string `json:"price"`   // limit kinds
	Size    string `json:"size"`
	Trigger string `json:"trigger"` // stop kinds
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	feeRate, _ := cfg.ParsedFeeRate()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// market data
	url := cfg.Feed.URL
	if url == "" {
		url = feed.DefaultBinanceURL
	}
	src := feed.NewBinance(url, logger)
	if err := src.Connect(ctx); err != nil {
		logger.Fatal("feed connect", zap.Error(err))
	}
	if err := src.Subscribe(cfg.Symbols); err != nil {
		logger.Fatal("feed subscribe", zap.Error(err))
	}

	// fill journal
	rec, err := newRecorder(ctx, cfg.Journal)
	if err != nil {
		logger.Fatal("journal", zap.Error(err))
	}
	defer func() { _ = rec.Close() }()

	eng := engine.New(src, src,
		engine.WithLogger(logger),
		engine.WithRecorder(rec),
		engine.WithFeeRate(feeRate),
		engine.WithCommandBuffer(cfg.CommandBuffer),
	)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: newRouter(eng)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func newRecorder(ctx context.Context, cfg config.Journal) (journal.Recorder, error) {
	switch cfg.Backend {
	case "postgres":
		return journal.NewPostgres(ctx, cfg.DatabaseURL)
	case "kafka":
		return journal.NewKafka(cfg.Brokers, cfg.Topic), nil
	default:
		return journal.Nop{}, nil
	}
}

func newRouter(eng *engine.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Second))

	r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
		var body placeOrderRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeProblem(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		resp, err := placeOrder(req.Context(), eng, body)
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrInvalidOrder):
				writeProblem(w, req, http.StatusBadRequest, "validation_error", err.Error())
			case errors.Is(err, engine.ErrPriceUnavailable):
				writeProblem(w, req, resp.Status, "price_unavailable", err.Error())
			default:
				writeProblem(w, req, http.StatusInternalServerError, "engine_error", err.Error())
			}
			return
		}
		writeJSON(w, req, http.StatusCreated, resp)
	})

	r.Delete("/orders/{symbol}/{id}", func(w http.ResponseWriter, req *http.Request) {
		symbol := chi.URLParam(req, "symbol")
		id := chi.URLParam(req, "id")
		resp, err := eng.CancelOrder(req.Context(), symbol, id)
		if err != nil {
			if errors.Is(err, engine.ErrOrderNotFound) {
				writeProblem(w, req, resp.Status, "not_found", err.Error())
				return
			}
			writeProblem(w, req, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		writeJSON(w, req, http.StatusOK, resp)
	})

	r.Get("/orders", func(w http.ResponseWriter, req *http.Request) {
		symbol := req.URL.Query().Get("symbol")
		var pred engine.OrderPredicate
		if symbol != "" {
			pred = func(o engine.Order) bool { return o.Symbol == symbol }
		}
		orders, err := eng.Orders(req.Context(), pred)
		if err != nil {
			writeProblem(w, req, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		writeJSON(w, req, http.StatusOK, orders)
	})

	r.Get("/executions", func(w http.ResponseWriter, req *http.Request) {
		symbol := req.URL.Query().Get("symbol")
		orderID := req.URL.Query().Get("order_id")
		var pred engine.ExecutionPredicate
		if symbol != "" || orderID != "" {
			pred = func(e engine.Execution) bool {
				return (symbol == "" || e.Symbol == symbol) && (orderID == "" || e.ID == orderID)
			}
		}
		execs, err := eng.Executions(req.Context(), pred)
		if err != nil {
			writeProblem(w, req, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		writeJSON(w, req, http.StatusOK, execs)
	})

	r.Get("/positions/{symbol}", func(w http.ResponseWriter, req *http.Request) {
		symbol := chi.URLParam(req, "symbol")
		pos, err := eng.Position(req.Context(), symbol)
		if err != nil {
			writeProblem(w, req, http.StatusInternalServerError, "engine_error", err.Error())
			return
		}
		if pos == nil {
			writeProblem(w, req, http.StatusNotFound, "not_found", "no open position for "+symbol)
			return
		}
		writeJSON(w, req, http.StatusOK, pos)
	})

	return r
}

// placeOrder dispatches on the closed order-kind set.
func placeOrder(ctx context.Context, eng *engine.Engine, body placeOrderRequest) (engine.OrderResponse, error) {
	side, err := engine.ParseSide(strings.TrimSpace(body.Side))
	if err != nil {
		return engine.OrderResponse{}, err
	}
	kind, err := engine.ParseOrderKind(strings.TrimSpace(body.Kind))
	if err != nil {
		return engine.OrderResponse{}, err
	}
	size, err := parseDecimal(body.Size, "size")
	if err != nil {
		return engine.OrderResponse{}, err
	}

	symbol := strings.TrimSpace(body.Symbol)
	switch kind {
	case engine.KindLimit:
		price, err := parseDecimal(body.Price, "price")
		if err != nil {
			return engine.OrderResponse{}, err
		}
		return eng.SubmitLimitOrder(ctx, symbol, side, price, size)
	case engine.KindMarket:
		return eng.SubmitMarketOrder(ctx, symbol, side, size)
	case engine.KindStopLimit:
		price, err := parseDecimal(body.Price, "price")
		if err != nil {
			return engine.OrderResponse{}, err
		}
		trigger, err := parseDecimal(body.Trigger, "trigger")
		if err != nil {
			return engine.OrderResponse{}, err
		}
		return eng.SubmitStopLimitOrder(ctx, symbol, side, price, size, trigger)
	case engine.KindStopMarket:
		trigger, err := parseDecimal(body.Trigger, "trigger")
		if err != nil {
			return engine.OrderResponse{}, err
		}
		return eng.SubmitStopMarketOrder(ctx, symbol, side, size, trigger)
	}
	return engine.OrderResponse{}, engine.ErrInvalidOrder
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Join(engine.ErrInvalidOrder, errors.New(field+" must be a decimal number"))
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, req *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(req.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, req *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(req.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   req.URL.Path,
		"request_id": reqID,
	})
}
