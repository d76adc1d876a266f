package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"trader_go/internal/domain"
	"trader_go/internal/pricing"

	"github.com/shopspring/decimal"
)

// Config holds the rebalancer tunables. Target allocations are percentages
// of total portfolio value per asset; the threshold is in percentage points.
type Config struct {
	TargetAllocations  map[string]decimal.Decimal
	RebalanceThreshold decimal.Decimal
	FeePercent         decimal.Decimal
}

// Validate checks the configuration once at construction.
func (c Config) Validate() error {
	if c.RebalanceThreshold.IsNegative() {
		return fmt.Errorf("rebalance threshold must not be negative")
	}
	sum := decimal.Zero
	for asset, pct := range c.TargetAllocations {
		if pct.IsNegative() {
			return fmt.Errorf("target allocation for %s must not be negative", asset)
		}
		sum = sum.Add(pct)
	}
	if sum.GreaterThan(oneHundred) {
		return fmt.Errorf("target allocations sum to %s%%, exceeding 100%%", sum)
	}
	return nil
}

// RebalanceRecommendation is one order needed to move an allocation back
// toward its target.
type RebalanceRecommendation struct {
	Asset      string
	Symbol     string
	Side       domain.Side
	Amount     decimal.Decimal // base-currency value to move
	CurrentPct decimal.Decimal
	TargetPct  decimal.Decimal
	Deviation  decimal.Decimal // current - target, percentage points
}

// RebalanceReport aggregates one rebalancing session.
type RebalanceReport struct {
	Executed    int
	Failed      int
	TotalVolume decimal.Decimal
	Errors      []string
}

// Rebalancer compares current allocations against configured targets and
// trades the portfolio back toward them. It reads the ledger and only
// mutates it through Buy/Sell during ExecuteRebalancing.
type Rebalancer struct {
	cfg    Config
	ledger *Ledger
	prices pricing.PriceSource
}

// NewRebalancer wires a rebalancer. Config is validated here and immutable
// afterwards.
func NewRebalancer(cfg Config, ledger *Ledger, prices pricing.PriceSource) (*Rebalancer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rebalancer config: %w", err)
	}
	if ledger == nil || prices == nil {
		return nil, fmt.Errorf("rebalancer requires a ledger and a price source")
	}
	return &Rebalancer{cfg: cfg, ledger: ledger, prices: prices}, nil
}

// AnalyzeBalance computes one recommendation per target allocation whose
// deviation is at or above the threshold, sorted by deviation magnitude
// descending.
func (r *Rebalancer) AnalyzeBalance(ctx context.Context) ([]RebalanceRecommendation, error) {
	prices := make(map[string]decimal.Decimal)
	for asset := range r.cfg.TargetAllocations {
		quote, err := r.prices.CurrentPrice(ctx, asset)
		if err != nil {
			slog.Warn("Rebalance analysis skipping asset without price",
				slog.String("asset", asset))
			continue
		}
		prices[asset] = quote.Price
	}
	for asset, pos := range r.ledger.Positions() {
		if _, ok := prices[asset]; ok {
			continue
		}
		if quote, err := r.prices.CurrentPrice(ctx, asset); err == nil {
			prices[asset] = quote.Price
		} else {
			prices[asset] = pos.AvgCostBasis
		}
	}

	total := r.ledger.TotalValue(prices)
	if !total.IsPositive() {
		return nil, fmt.Errorf("portfolio value is not positive: %s", total)
	}

	var recs []RebalanceRecommendation
	for asset, targetPct := range r.cfg.TargetAllocations {
		price, ok := prices[asset]
		if !ok {
			continue
		}

		currentVal := decimal.Zero
		symbol := asset
		if pos, held := r.ledger.Position(asset); held {
			currentVal = pos.MarketValue(price)
			symbol = pos.Symbol
		}
		currentPct := currentVal.Div(total).Mul(oneHundred)
		deviation := currentPct.Sub(targetPct)
		if deviation.Abs().LessThan(r.cfg.RebalanceThreshold) {
			continue
		}

		side := domain.SideBuy
		if deviation.IsPositive() {
			side = domain.SideSell
		}
		recs = append(recs, RebalanceRecommendation{
			Asset:      asset,
			Symbol:     symbol,
			Side:       side,
			Amount:     deviation.Abs().Div(oneHundred).Mul(total),
			CurrentPct: currentPct,
			TargetPct:  targetPct,
			Deviation:  deviation,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Deviation.Abs().GreaterThan(recs[j].Deviation.Abs())
	})
	return recs, nil
}

// ExecuteRebalancing runs all sell recommendations first to free base
// currency, then all buys. Individual failures are collected in the report;
// the session never aborts early.
func (r *Rebalancer) ExecuteRebalancing(ctx context.Context, recs []RebalanceRecommendation) RebalanceReport {
	report := RebalanceReport{TotalVolume: decimal.Zero}

	ordered := make([]RebalanceRecommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.Side == domain.SideSell {
			ordered = append(ordered, rec)
		}
	}
	for _, rec := range recs {
		if rec.Side == domain.SideBuy {
			ordered = append(ordered, rec)
		}
	}

	for _, rec := range ordered {
		if err := r.execute(ctx, rec); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			slog.Warn("Rebalance order failed",
				slog.String("asset", rec.Asset),
				slog.String("side", string(rec.Side)),
				slog.Any("error", err))
			continue
		}
		report.Executed++
		report.TotalVolume = report.TotalVolume.Add(rec.Amount)
	}

	slog.Info("Rebalancing session complete",
		slog.Int("executed", report.Executed),
		slog.Int("failed", report.Failed),
		slog.String("volume", report.TotalVolume.String()))
	return report
}

func (r *Rebalancer) execute(ctx context.Context, rec RebalanceRecommendation) error {
	quote, err := r.prices.CurrentPrice(ctx, rec.Asset)
	if err != nil {
		return fmt.Errorf("rebalance %s %s: %w", rec.Side, rec.Asset, err)
	}

	switch rec.Side {
	case domain.SideSell:
		quantity := rec.Amount.Div(quote.Price)
		if pos, ok := r.ledger.Position(rec.Asset); ok && quantity.GreaterThan(pos.Quantity) {
			quantity = pos.Quantity
		}
		if !r.ledger.Sell(rec.Asset, quantity, quote.Price, r.cfg.FeePercent) {
			return fmt.Errorf("ledger rejected rebalance sell of %s", rec.Asset)
		}
	case domain.SideBuy:
		if !r.ledger.Buy(rec.Asset, rec.Symbol, rec.Amount, quote.Price, r.cfg.FeePercent) {
			return fmt.Errorf("ledger rejected rebalance buy of %s", rec.Asset)
		}
	}
	return nil
}
