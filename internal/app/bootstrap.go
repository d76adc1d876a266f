package app

import (
	"fmt"
	"log/slog"
	"time"

	"trader_go/internal/engine"
	"trader_go/internal/event"
	"trader_go/internal/execution"
	"trader_go/internal/infra"
	"trader_go/internal/obs"
	"trader_go/internal/portfolio"
	"trader_go/internal/pricing"
	"trader_go/internal/risk"
	"trader_go/internal/storage"
	"trader_go/internal/strategy"

	"github.com/shopspring/decimal"
)

// Bootstrap assembles the trading engine and its collaborators from the
// loaded configuration.
type Bootstrap struct {
	Config     *infra.Config
	Engine     *engine.Engine
	Ledger     *portfolio.Ledger
	Risk       *risk.Controller
	Rebalancer *portfolio.Rebalancer
	Prices     *pricing.StaticSource
	Bus        *event.Bus
	Journal    *storage.Journal
}

// NewBootstrap creates an empty bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, wires the logger and builds the full
// collaborator graph. Nothing starts running until Engine.Start.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("Bootstrapping trader", slog.String("config", configPath))

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg
	slog.SetDefault(infra.NewLogger(cfg))

	obs.InitMetrics()

	// Ledger
	initialBalance, err := decOr(cfg.Trading.InitialBalance, "10")
	if err != nil {
		return fmt.Errorf("initial_balance: %w", err)
	}
	b.Ledger = portfolio.NewLedger(initialBalance)

	// Price source seeded from the configured universe. Live market
	// data is an external collaborator; the embedding application
	// updates these quotes.
	b.Prices = pricing.NewStaticSource()
	assets := make([]string, 0, len(cfg.Assets))
	for _, a := range cfg.Assets {
		price, err := decOr(a.Price, "0")
		if err != nil {
			return fmt.Errorf("asset %s price: %w", a.ID, err)
		}
		volume, err := decOr(a.Volume, "0")
		if err != nil {
			return fmt.Errorf("asset %s volume: %w", a.ID, err)
		}
		b.Prices.SetAsset(a.ID, pricing.AssetInfo{Symbol: a.Symbol, Name: a.Symbol}, pricing.Quote{
			Price:     price,
			Volume24h: volume,
		})
		assets = append(assets, a.ID)
	}

	// Risk controller
	riskCfg, err := b.riskConfig()
	if err != nil {
		return err
	}
	b.Risk, err = risk.NewController(riskCfg, b.Ledger, b.Prices, b.Prices)
	if err != nil {
		return err
	}

	feePercent, err := decOr(cfg.Trading.FeePercent, "0.1")
	if err != nil {
		return fmt.Errorf("fee_percent: %w", err)
	}
	slippagePct, err := decOr(cfg.Trading.SlippagePercent, "0.001")
	if err != nil {
		return fmt.Errorf("slippage_percent: %w", err)
	}

	// Rebalancer, only when targets are configured
	if len(cfg.Portfolio.Targets) > 0 {
		rebCfg := portfolio.Config{
			TargetAllocations: make(map[string]decimal.Decimal, len(cfg.Portfolio.Targets)),
			FeePercent:        feePercent,
		}
		rebCfg.RebalanceThreshold, err = decOr(cfg.Portfolio.RebalanceThreshold, "5")
		if err != nil {
			return fmt.Errorf("rebalance_threshold: %w", err)
		}
		for asset, pct := range cfg.Portfolio.Targets {
			target, err := decimal.NewFromString(pct)
			if err != nil {
				return fmt.Errorf("target allocation %s: %w", asset, err)
			}
			rebCfg.TargetAllocations[asset] = target
		}
		b.Rebalancer, err = portfolio.NewRebalancer(rebCfg, b.Ledger, b.Prices)
		if err != nil {
			return err
		}
	}

	// Execution backend
	factory := execution.NewFactory(execution.Mode(cfg.Trading.Mode), slippagePct, feePercent, nil)
	backend, err := factory.CreateBackend()
	if err != nil {
		return err
	}

	// Journal, only when a storage path is configured
	var journal engine.TradeJournal
	if cfg.Storage.Path != "" {
		b.Journal, err = storage.NewJournal(cfg.Storage.Path)
		if err != nil {
			return err
		}
		journal = b.Journal
		slog.Info("Trade journal enabled", slog.String("path", cfg.Storage.Path))
	}

	// Engine
	b.Bus = event.NewBus()
	engCfg := engine.DefaultConfig()
	engCfg.Assets = assets
	engCfg.MaxConcurrentTrades = cfg.Trading.MaxConcurrentTrades
	engCfg.StrategyInterval = time.Duration(cfg.Trading.StrategyIntervalSec) * time.Second
	engCfg.FeePercent = feePercent
	engCfg.ErrorBudgetPerHour = cfg.Trading.ErrorBudgetPerHour
	engCfg.EmergencyStopOnError = cfg.Trading.EmergencyStopOnError
	if cfg.Trading.ShutdownGraceSec > 0 {
		engCfg.ShutdownGrace = time.Duration(cfg.Trading.ShutdownGraceSec) * time.Second
	}
	b.Engine, err = engine.New(engCfg, b.Ledger, b.Risk, b.Prices, backend, b.Bus, journal)
	if err != nil {
		return err
	}

	if err := b.addStrategies(); err != nil {
		return err
	}

	slog.Info("Bootstrap complete",
		slog.String("mode", cfg.Trading.Mode),
		slog.Int("assets", len(assets)),
		slog.String("initial_balance", initialBalance.String()))
	return nil
}

// addStrategies wires the configured strategies into the engine.
func (b *Bootstrap) addStrategies() error {
	cfg := b.Config
	if cfg.Trading.DCAAmount == "" || cfg.Trading.DCAIntervalSec <= 0 {
		return nil
	}
	amount, err := decimal.NewFromString(cfg.Trading.DCAAmount)
	if err != nil {
		return fmt.Errorf("dca_amount: %w", err)
	}
	interval := time.Duration(cfg.Trading.DCAIntervalSec) * time.Second
	for _, a := range cfg.Assets {
		b.Engine.AddStrategy(strategy.NewIntervalDCA("dca-"+a.ID, a.ID, a.Symbol, amount, interval))
	}
	return nil
}

// Close releases resources held by the bootstrap.
func (b *Bootstrap) Close() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Error("Failed to close journal", slog.Any("error", err))
		}
	}
}

func (b *Bootstrap) riskConfig() (risk.Config, error) {
	in := b.Config.Risk
	out := risk.DefaultConfig()

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{in.MinPositionSize, &out.MinPositionSize},
		{in.MaxPositionSize, &out.MaxPositionSize},
		{in.MaxPositionPct, &out.MaxPositionPct},
		{in.MaxDailyLossPct, &out.MaxDailyLossPct},
		{in.MaxWeeklyLossPct, &out.MaxWeeklyLossPct},
		{in.CircuitBreakerPct, &out.CircuitBreakerLossPct},
		{in.MaxVolatility, &out.MaxVolatility},
		{in.MinLiquidityVolume, &out.MinLiquidityVolume},
		{in.MaxVolumeFraction, &out.MaxVolumeFraction},
		{in.TrailingStopPct, &out.TrailingStopPercent},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return risk.Config{}, fmt.Errorf("risk config: %w", err)
		}
		*f.dst = v
	}
	if in.CooldownMinutes > 0 {
		out.CircuitBreakerCooldown = time.Duration(in.CooldownMinutes) * time.Minute
	}
	if in.AlertWindowMinutes > 0 {
		out.AlertWindow = time.Duration(in.AlertWindowMinutes) * time.Minute
	}
	return out, nil
}

// decOr parses a decimal string, falling back to a default when empty.
func decOr(raw, fallback string) (decimal.Decimal, error) {
	if raw == "" {
		raw = fallback
	}
	return decimal.NewFromString(raw)
}
