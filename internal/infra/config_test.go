package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: trader
  version: "0.1"
trading:
  mode: PAPER
  initial_balance: "10.0"
  fee_percent: "0.25"
  max_concurrent_trades: 3
  strategy_interval_sec: 60
risk:
  max_position_size: "2.0"
portfolio:
  rebalance_threshold: "5"
  targets:
    TOK: "20"
assets:
  - id: TOK
    symbol: TOK
    price: "2.0"
    volume: "100000"
logging:
  level: info
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Trading.Mode != "PAPER" {
		t.Errorf("expected PAPER mode, got %s", cfg.Trading.Mode)
	}
	if cfg.Trading.MaxConcurrentTrades != 3 {
		t.Errorf("expected 3 concurrent trades, got %d", cfg.Trading.MaxConcurrentTrades)
	}
	if len(cfg.Assets) != 1 || cfg.Assets[0].ID != "TOK" {
		t.Errorf("unexpected assets: %+v", cfg.Assets)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TRADER_MODE", "LIVE")
	t.Setenv("TRADER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Trading.Mode != "LIVE" {
		t.Errorf("env override should win, got %s", cfg.Trading.Mode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad mode": `
trading:
  mode: YOLO
  max_concurrent_trades: 1
  strategy_interval_sec: 10
assets:
  - {id: TOK, symbol: TOK}
`,
		"zero concurrency": `
trading:
  mode: PAPER
  max_concurrent_trades: 0
  strategy_interval_sec: 10
assets:
  - {id: TOK, symbol: TOK}
`,
		"paper without assets": `
trading:
  mode: PAPER
  max_concurrent_trades: 1
  strategy_interval_sec: 10
`,
	}
	for name, content := range cases {
		if _, err := LoadConfig(writeConfig(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
