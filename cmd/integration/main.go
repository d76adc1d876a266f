package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"trader_go/internal/engine"
	"trader_go/internal/event"
	"trader_go/internal/execution"
	"trader_go/internal/portfolio"
	"trader_go/internal/pricing"
	"trader_go/internal/risk"
	"trader_go/internal/strategy"

	"github.com/shopspring/decimal"
)

// Paper-mode smoke run: wires the full collaborator graph with static
// prices and a fast DCA strategy, runs the engine briefly and verifies
// that a trade actually went through end to end.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("Starting paper smoke run...")

	ledger := portfolio.NewLedger(decimal.RequireFromString("1000"))
	prices := pricing.NewStaticSource()
	prices.SetAsset("smoke-token", pricing.AssetInfo{Symbol: "SMK", Name: "Smoke Token"}, pricing.Quote{
		Price:     decimal.RequireFromString("2.5"),
		Volume24h: decimal.RequireFromString("1000000"),
	})

	riskCfg := risk.DefaultConfig()
	riskCfg.MaxPositionSize = decimal.RequireFromString("100")
	ctl, err := risk.NewController(riskCfg, ledger, prices, prices)
	if err != nil {
		slog.Error("Risk controller setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	backend := execution.NewPaperBackend(
		decimal.RequireFromString("0.001"),
		decimal.RequireFromString("0.1"))
	bus := event.NewBus()

	cfg := engine.DefaultConfig()
	cfg.Assets = []string{"smoke-token"}
	cfg.StrategyInterval = time.Second
	cfg.TradingTick = 200 * time.Millisecond
	cfg.MonitoringTick = time.Second
	cfg.ShutdownGrace = 5 * time.Second

	eng, err := engine.New(cfg, ledger, ctl, prices, backend, bus, nil)
	if err != nil {
		slog.Error("Engine setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	executed := make(chan struct{}, 1)
	eng.Subscribe(event.KindTradeExecuted, func(_ event.Kind, payload any) {
		p := payload.(event.TradePayload)
		slog.Info("Smoke trade executed",
			slog.String("asset", p.Execution.Proposal.Asset),
			slog.String("price", p.Execution.ActualPrice.String()))
		select {
		case executed <- struct{}{}:
		default:
		}
	})

	eng.AddStrategy(strategy.NewIntervalDCA("smoke-dca", "smoke-token", "SMK",
		decimal.RequireFromString("1"), time.Second))

	if err := eng.Start(); err != nil {
		slog.Error("Engine failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok := false
	select {
	case <-executed:
		ok = true
	case <-ctx.Done():
	}

	if err := eng.Stop(); err != nil {
		slog.Error("Engine stop failed", slog.Any("error", err))
		os.Exit(1)
	}

	status := eng.Status()
	slog.Info("Smoke run finished",
		slog.Uint64("trades", status.TradesExecuted),
		slog.String("volume", status.TotalVolume.String()),
		slog.String("balance", ledger.BaseBalance().String()))

	if !ok {
		slog.Error("No trade executed within the smoke window")
		os.Exit(1)
	}
	slog.Info("Smoke run passed")
}
