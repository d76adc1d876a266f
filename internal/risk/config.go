package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every risk limit. Immutable for the lifetime of a run;
// validated once at controller construction.
type Config struct {
	// Position sizing, in base currency (SOL).
	MinPositionSize decimal.Decimal
	MaxPositionSize decimal.Decimal
	// Ceiling on one position as a percentage of total portfolio value.
	MaxPositionPct decimal.Decimal

	// Loss limits as percentages of the rolling reference values.
	MaxDailyLossPct  decimal.Decimal
	MaxWeeklyLossPct decimal.Decimal

	// Cumulative loss from the initial balance that trips the breaker.
	CircuitBreakerLossPct  decimal.Decimal
	CircuitBreakerCooldown time.Duration

	// Volatility ceiling; zero disables the check.
	MaxVolatility decimal.Decimal

	// Liquidity: floor on trailing 24h volume and the largest fraction of
	// that volume one trade may take.
	MinLiquidityVolume decimal.Decimal
	MaxVolumeFraction  decimal.Decimal

	// Trailing-stop distance as a fraction (0.05 = 5%).
	TrailingStopPercent decimal.Decimal

	// Alerts older than this drop out of the active set.
	AlertWindow time.Duration
}

// DefaultConfig returns conservative limits for a paper run.
func DefaultConfig() Config {
	return Config{
		MinPositionSize:        decimal.RequireFromString("0.01"),
		MaxPositionSize:        decimal.RequireFromString("2.0"),
		MaxPositionPct:         decimal.RequireFromString("20"),
		MaxDailyLossPct:        decimal.RequireFromString("5"),
		MaxWeeklyLossPct:       decimal.RequireFromString("10"),
		CircuitBreakerLossPct:  decimal.RequireFromString("20"),
		CircuitBreakerCooldown: 4 * time.Hour,
		MaxVolatility:          decimal.RequireFromString("0.15"),
		MinLiquidityVolume:     decimal.RequireFromString("1000"),
		MaxVolumeFraction:      decimal.RequireFromString("0.05"),
		TrailingStopPercent:    decimal.RequireFromString("0.05"),
		AlertWindow:            time.Hour,
	}
}

// Validate checks internal consistency of the limits.
func (c Config) Validate() error {
	if c.MinPositionSize.IsNegative() {
		return fmt.Errorf("min position size must not be negative")
	}
	if c.MaxPositionSize.LessThan(c.MinPositionSize) {
		return fmt.Errorf("max position size %s below min %s", c.MaxPositionSize, c.MinPositionSize)
	}
	for name, pct := range map[string]decimal.Decimal{
		"max position pct":         c.MaxPositionPct,
		"max daily loss pct":       c.MaxDailyLossPct,
		"max weekly loss pct":      c.MaxWeeklyLossPct,
		"circuit breaker loss pct": c.CircuitBreakerLossPct,
	} {
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%s must be within [0,100], got %s", name, pct)
		}
	}
	if c.CircuitBreakerCooldown <= 0 {
		return fmt.Errorf("circuit breaker cooldown must be positive")
	}
	if c.MaxVolumeFraction.IsNegative() || c.MaxVolumeFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max volume fraction must be within [0,1], got %s", c.MaxVolumeFraction)
	}
	if c.TrailingStopPercent.IsNegative() || c.TrailingStopPercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("trailing stop percent must be within [0,1), got %s", c.TrailingStopPercent)
	}
	if c.AlertWindow <= 0 {
		return fmt.Errorf("alert window must be positive")
	}
	return nil
}
