package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Loaded once at startup,
// validated, then treated as immutable. Monetary limits are strings so they
// survive the YAML round trip without float noise; the bootstrap converts
// them to decimals.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode                 string  `yaml:"mode"` // PAPER or LIVE
		InitialBalance       string  `yaml:"initial_balance"`
		FeePercent           string  `yaml:"fee_percent"`
		SlippagePercent      string  `yaml:"slippage_percent"`
		MaxConcurrentTrades  int     `yaml:"max_concurrent_trades"`
		StrategyIntervalSec  int     `yaml:"strategy_interval_sec"`
		ShutdownGraceSec     int     `yaml:"shutdown_grace_sec"`
		ErrorBudgetPerHour   int     `yaml:"error_budget_per_hour"`
		EmergencyStopOnError bool    `yaml:"emergency_stop_on_error"`
		DCAAmount            string  `yaml:"dca_amount"`
		DCAIntervalSec       int     `yaml:"dca_interval_sec"`
		DCAConfidenceFloor   float64 `yaml:"dca_confidence_floor"`
	} `yaml:"trading"`

	Risk struct {
		MinPositionSize    string `yaml:"min_position_size"`
		MaxPositionSize    string `yaml:"max_position_size"`
		MaxPositionPct     string `yaml:"max_position_pct"`
		MaxDailyLossPct    string `yaml:"max_daily_loss_pct"`
		MaxWeeklyLossPct   string `yaml:"max_weekly_loss_pct"`
		CircuitBreakerPct  string `yaml:"circuit_breaker_pct"`
		CooldownMinutes    int    `yaml:"cooldown_minutes"`
		MaxVolatility      string `yaml:"max_volatility"`
		MinLiquidityVolume string `yaml:"min_liquidity_volume"`
		MaxVolumeFraction  string `yaml:"max_volume_fraction"`
		TrailingStopPct    string `yaml:"trailing_stop_pct"`
		AlertWindowMinutes int    `yaml:"alert_window_minutes"`
	} `yaml:"risk"`

	Portfolio struct {
		RebalanceThreshold string            `yaml:"rebalance_threshold"`
		Targets            map[string]string `yaml:"targets"` // asset -> pct
	} `yaml:"portfolio"`

	// Paper-mode asset universe with seed quotes.
	Assets []struct {
		ID     string `yaml:"id"`
		Symbol string `yaml:"symbol"`
		Price  string `yaml:"price"`
		Volume string `yaml:"volume"`
	} `yaml:"assets"`

	Storage struct {
		Path string `yaml:"path"` // empty disables the journal
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks structural validity. Numeric limits get their detailed
// validation in the packages that own them.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case "PAPER", "LIVE":
	case "":
		c.Trading.Mode = "PAPER"
	default:
		return fmt.Errorf("unknown trading mode: %q", c.Trading.Mode)
	}

	if c.Trading.MaxConcurrentTrades <= 0 {
		return fmt.Errorf("max_concurrent_trades must be positive")
	}
	if c.Trading.StrategyIntervalSec <= 0 {
		return fmt.Errorf("strategy_interval_sec must be positive")
	}
	if c.Trading.Mode == "PAPER" && len(c.Assets) == 0 {
		return fmt.Errorf("paper mode requires at least one asset")
	}
	for i, a := range c.Assets {
		if a.ID == "" || a.Symbol == "" {
			return fmt.Errorf("asset %d missing id or symbol", i)
		}
	}
	return nil
}

// overrideWithEnv lets the environment take precedence over the file for
// deployment-sensitive values.
func overrideWithEnv(cfg *Config) {
	if mode := os.Getenv("TRADER_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}
	if balance := os.Getenv("TRADER_INITIAL_BALANCE"); balance != "" {
		cfg.Trading.InitialBalance = balance
	}
	if level := os.Getenv("TRADER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if path := os.Getenv("TRADER_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
