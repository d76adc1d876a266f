package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trader_go/internal/domain"
	"trader_go/internal/portfolio"
	"trader_go/internal/pricing"

	"github.com/shopspring/decimal"
)

const maxStoredAlerts = 256

var oneHundred = decimal.NewFromInt(100)

// referenceValue is a portfolio value captured at the start of a rolling
// period. Refreshed lazily on access when the period has elapsed.
type referenceValue struct {
	value      decimal.Decimal
	capturedAt time.Time
}

// Controller is the risk admission gate. Every proposal passes through
// ValidateTrade before execution; the monitoring loop calls the stop-loss
// and limit checks. The controller reads the ledger and never mutates it.
type Controller struct {
	cfg       Config
	ledger    *portfolio.Ledger
	prices    pricing.PriceSource
	analytics pricing.AnalyticsSource
	breaker   *CircuitBreaker

	mu        sync.Mutex
	stops     map[string]*domain.StopLossOrder
	alerts    []domain.RiskAlert
	dailyRef  referenceValue
	weeklyRef referenceValue

	now func() time.Time // test seam
}

// NewController wires a risk controller. The analytics source may be nil,
// which disables the volatility check.
func NewController(cfg Config, ledger *portfolio.Ledger, prices pricing.PriceSource, analytics pricing.AnalyticsSource) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config: %w", err)
	}
	if ledger == nil {
		return nil, fmt.Errorf("risk controller requires a ledger")
	}
	if prices == nil {
		return nil, fmt.Errorf("risk controller requires a price source")
	}
	return &Controller{
		cfg:       cfg,
		ledger:    ledger,
		prices:    prices,
		analytics: analytics,
		breaker:   NewCircuitBreaker(cfg.CircuitBreakerCooldown),
		stops:     make(map[string]*domain.StopLossOrder),
		now:       time.Now,
	}, nil
}

// ValidateTrade runs the admission checks in order, short-circuiting on the
// first rejection. Approved trades may still carry advisory alerts.
func (c *Controller) ValidateTrade(ctx context.Context, asset string, side domain.Side, size, currentPrice decimal.Decimal) (bool, []domain.RiskAlert) {
	var alerts []domain.RiskAlert

	// 1. Circuit breaker.
	if c.breaker.Active() {
		alert := domain.NewRiskAlert(domain.AlertEmergencyStop, domain.SeverityCritical,
			fmt.Sprintf("emergency stop active, %s cooldown remaining", c.breaker.Remaining().Round(time.Second)),
			asset, "halt trading until cooldown elapses")
		c.record(alert)
		return false, append(alerts, alert)
	}

	// 2. Position size.
	if alert, ok := c.checkPositionSize(asset, side, size, currentPrice); !ok {
		c.record(alert)
		return false, append(alerts, alert)
	}

	// 3. Loss limits (may trip the breaker).
	if alert, ok := c.checkLossLimits(ctx, asset); !ok {
		c.record(alert)
		return false, append(alerts, alert)
	}

	// 4. Volatility.
	if alert, ok := c.checkVolatility(ctx, asset); !ok {
		c.record(alert)
		return false, append(alerts, alert)
	}

	// 5. Liquidity.
	if alert, ok := c.checkLiquidity(ctx, asset, size); !ok {
		c.record(alert)
		return false, append(alerts, alert)
	}

	// 6. Correlation, buy side only: advisory, never blocks.
	if side == domain.SideBuy {
		if _, held := c.ledger.Position(asset); held {
			alert := domain.NewRiskAlert(domain.AlertCorrelation, domain.SeverityInfo,
				"adding to an existing position in the same asset",
				asset, "review concentration before adding")
			c.record(alert)
			alerts = append(alerts, alert)
		}
	}

	return true, alerts
}

func (c *Controller) checkPositionSize(asset string, side domain.Side, size, currentPrice decimal.Decimal) (domain.RiskAlert, bool) {
	if size.LessThan(c.cfg.MinPositionSize) {
		return domain.NewRiskAlert(domain.AlertPositionSize, domain.SeverityWarning,
			fmt.Sprintf("size %s below minimum %s", size, c.cfg.MinPositionSize),
			asset, "increase size or skip"), false
	}
	if size.GreaterThan(c.cfg.MaxPositionSize) {
		return domain.NewRiskAlert(domain.AlertPositionSize, domain.SeverityWarning,
			fmt.Sprintf("size %s above maximum %s", size, c.cfg.MaxPositionSize),
			asset, "reduce position size"), false
	}

	if side == domain.SideBuy && c.cfg.MaxPositionPct.IsPositive() {
		total := c.ledger.TotalValue(map[string]decimal.Decimal{asset: currentPrice})
		if total.IsPositive() {
			held := decimal.Zero
			if pos, ok := c.ledger.Position(asset); ok {
				held = pos.MarketValue(currentPrice)
			}
			projectedPct := held.Add(size).Div(total).Mul(oneHundred)
			if projectedPct.GreaterThan(c.cfg.MaxPositionPct) {
				return domain.NewRiskAlert(domain.AlertPositionSize, domain.SeverityWarning,
					fmt.Sprintf("position would reach %s%% of portfolio, limit %s%%",
						projectedPct.Round(2), c.cfg.MaxPositionPct),
					asset, "reduce position size"), false
			}
		}
	}
	return domain.RiskAlert{}, true
}

func (c *Controller) checkLossLimits(ctx context.Context, asset string) (domain.RiskAlert, bool) {
	value := c.portfolioValue(ctx)

	c.mu.Lock()
	now := c.now()
	if c.dailyRef.capturedAt.IsZero() || now.Sub(c.dailyRef.capturedAt) > 24*time.Hour {
		c.dailyRef = referenceValue{value: value, capturedAt: now}
	}
	if c.weeklyRef.capturedAt.IsZero() || now.Sub(c.weeklyRef.capturedAt) > 7*24*time.Hour {
		c.weeklyRef = referenceValue{value: value, capturedAt: now}
	}
	dailyRef := c.dailyRef.value
	weeklyRef := c.weeklyRef.value
	c.mu.Unlock()

	if loss := lossPercent(c.ledger.InitialBalance(), value); loss.GreaterThanOrEqual(c.cfg.CircuitBreakerLossPct) {
		reason := fmt.Sprintf("cumulative loss %s%% reached circuit breaker threshold %s%%",
			loss.Round(2), c.cfg.CircuitBreakerLossPct)
		c.breaker.Trip(reason)
		return domain.NewRiskAlert(domain.AlertEmergencyStop, domain.SeverityCritical,
			reason, asset, "emergency stop engaged"), false
	}

	if loss := lossPercent(dailyRef, value); loss.GreaterThan(c.cfg.MaxDailyLossPct) {
		return domain.NewRiskAlert(domain.AlertLossLimit, domain.SeverityCritical,
			fmt.Sprintf("daily loss %s%% exceeds limit %s%%", loss.Round(2), c.cfg.MaxDailyLossPct),
			asset, "pause trading for the day"), false
	}
	if loss := lossPercent(weeklyRef, value); loss.GreaterThan(c.cfg.MaxWeeklyLossPct) {
		return domain.NewRiskAlert(domain.AlertLossLimit, domain.SeverityCritical,
			fmt.Sprintf("weekly loss %s%% exceeds limit %s%%", loss.Round(2), c.cfg.MaxWeeklyLossPct),
			asset, "pause trading for the week"), false
	}
	return domain.RiskAlert{}, true
}

func (c *Controller) checkVolatility(ctx context.Context, asset string) (domain.RiskAlert, bool) {
	if c.analytics == nil || !c.cfg.MaxVolatility.IsPositive() {
		return domain.RiskAlert{}, true
	}

	vol, err := c.analytics.RecentVolatility(ctx, asset)
	if err != nil {
		slog.Warn("Volatility lookup failed, check skipped",
			slog.String("asset", asset), slog.Any("error", err))
		return domain.RiskAlert{}, true
	}
	if vol.GreaterThan(c.cfg.MaxVolatility) {
		return domain.NewRiskAlert(domain.AlertVolatility, domain.SeverityWarning,
			fmt.Sprintf("volatility %s exceeds ceiling %s", vol, c.cfg.MaxVolatility),
			asset, "wait for volatility to settle"), false
	}
	return domain.RiskAlert{}, true
}

func (c *Controller) checkLiquidity(ctx context.Context, asset string, size decimal.Decimal) (domain.RiskAlert, bool) {
	quote, err := c.prices.CurrentPrice(ctx, asset)
	if err != nil {
		slog.Warn("Liquidity lookup failed, check skipped",
			slog.String("asset", asset), slog.Any("error", err))
		return domain.RiskAlert{}, true
	}

	if quote.Volume24h.LessThan(c.cfg.MinLiquidityVolume) {
		return domain.NewRiskAlert(domain.AlertLiquidity, domain.SeverityWarning,
			fmt.Sprintf("24h volume %s below floor %s", quote.Volume24h, c.cfg.MinLiquidityVolume),
			asset, "skip illiquid asset"), false
	}
	if c.cfg.MaxVolumeFraction.IsPositive() {
		ceiling := quote.Volume24h.Mul(c.cfg.MaxVolumeFraction)
		if size.GreaterThan(ceiling) {
			return domain.NewRiskAlert(domain.AlertLiquidity, domain.SeverityWarning,
				fmt.Sprintf("size %s exceeds %s of 24h volume", size, c.cfg.MaxVolumeFraction),
				asset, "reduce size relative to volume"), false
		}
	}
	return domain.RiskAlert{}, true
}

// CheckRiskLimits re-evaluates the portfolio loss limits outside of any
// trade. Called periodically by the monitoring loop; returns any findings.
func (c *Controller) CheckRiskLimits(ctx context.Context) []domain.RiskAlert {
	if alert, ok := c.checkLossLimits(ctx, ""); !ok {
		c.record(alert)
		return []domain.RiskAlert{alert}
	}
	return nil
}

// EmergencyStopActive reports the breaker state, applying lazy recovery.
func (c *Controller) EmergencyStopActive() bool {
	return c.breaker.Active()
}

// TripEmergencyStop forces the breaker open, e.g. on an error-budget breach.
func (c *Controller) TripEmergencyStop(reason string) {
	c.breaker.Trip(reason)
}

// ActiveAlerts returns alerts younger than the configured window.
func (c *Controller) ActiveAlerts() []domain.RiskAlert {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowU := c.now().UnixMicro()
	var out []domain.RiskAlert
	for _, a := range c.alerts {
		if a.ActiveWithin(c.cfg.AlertWindow, nowU) {
			out = append(out, a)
		}
	}
	return out
}

// TrimAlerts drops alerts outside the active window. Called by the
// housekeeping loop.
func (c *Controller) TrimAlerts() {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowU := c.now().UnixMicro()
	kept := c.alerts[:0]
	for _, a := range c.alerts {
		if a.ActiveWithin(c.cfg.AlertWindow, nowU) {
			kept = append(kept, a)
		}
	}
	c.alerts = kept
}

// portfolioValue prices every open position through the price source,
// falling back to cost basis for assets without a quote.
func (c *Controller) portfolioValue(ctx context.Context) decimal.Decimal {
	positions := c.ledger.Positions()
	prices := make(map[string]decimal.Decimal, len(positions))
	for asset := range positions {
		if quote, err := c.prices.CurrentPrice(ctx, asset); err == nil {
			prices[asset] = quote.Price
		}
	}
	return c.ledger.TotalValue(prices)
}

func (c *Controller) record(alert domain.RiskAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alerts = append(c.alerts, alert)
	if len(c.alerts) > maxStoredAlerts {
		c.alerts = c.alerts[len(c.alerts)-maxStoredAlerts:]
	}
}

// lossPercent returns the loss from ref to current as a positive
// percentage; gains and a zero reference report zero.
func lossPercent(ref, current decimal.Decimal) decimal.Decimal {
	if !ref.IsPositive() || current.GreaterThanOrEqual(ref) {
		return decimal.Zero
	}
	return ref.Sub(current).Div(ref).Mul(oneHundred)
}
