package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the scheduler's tunables. Immutable for the lifetime of
// a run; validated once at construction.
type Config struct {
	// Assets is the tradeable universe handed to strategies each cycle.
	Assets []string

	// MaxConcurrentTrades caps the in-flight execution set. Proposals
	// beyond the cap are dropped for the cycle, not queued.
	MaxConcurrentTrades int

	// StrategyInterval is the minimum gap between two trading cycles.
	StrategyInterval time.Duration

	// TradingTick is how often the trading loop wakes to check whether
	// a cycle is due.
	TradingTick time.Duration

	// MonitoringTick paces risk-limit and stop-loss evaluation.
	MonitoringTick time.Duration

	// HousekeepingTick paces history trimming and counter resets.
	HousekeepingTick time.Duration

	// ReportInterval gates performance-report events on the monitoring loop.
	ReportInterval time.Duration

	// StrategyTimeout bounds one GenerateProposals call.
	StrategyTimeout time.Duration

	// CycleBackoff is the fixed delay after a cycle-level failure.
	CycleBackoff time.Duration

	// ShutdownGrace bounds how long Stop waits for in-flight
	// executions to drain.
	ShutdownGrace time.Duration

	// FeePercent is the ledger fee rate, in percent (0.1 means 0.1%).
	FeePercent decimal.Decimal

	// ErrorBudgetPerHour is the recovered-error budget; crossing it
	// raises a critical-error event.
	ErrorBudgetPerHour int

	// EmergencyStopOnError drives the engine to the Error state when
	// the error budget is exhausted.
	EmergencyStopOnError bool
}

// DefaultConfig returns the paper-trading defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTrades: 3,
		StrategyInterval:    60 * time.Second,
		TradingTick:         time.Second,
		MonitoringTick:      5 * time.Second,
		HousekeepingTick:    5 * time.Minute,
		ReportInterval:      time.Minute,
		StrategyTimeout:     10 * time.Second,
		CycleBackoff:        5 * time.Second,
		ShutdownGrace:       30 * time.Second,
		FeePercent:          decimal.RequireFromString("0.1"),
		ErrorBudgetPerHour:  10,
	}
}

// Validate checks the scheduler invariants.
func (c Config) Validate() error {
	if c.MaxConcurrentTrades <= 0 {
		return fmt.Errorf("max concurrent trades must be positive, got %d", c.MaxConcurrentTrades)
	}
	if c.StrategyInterval <= 0 {
		return fmt.Errorf("strategy interval must be positive, got %s", c.StrategyInterval)
	}
	if c.TradingTick <= 0 || c.MonitoringTick <= 0 || c.HousekeepingTick <= 0 {
		return fmt.Errorf("loop ticks must be positive")
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown grace must not be negative, got %s", c.ShutdownGrace)
	}
	if c.FeePercent.IsNegative() {
		return fmt.Errorf("fee percent must not be negative, got %s", c.FeePercent)
	}
	return nil
}
