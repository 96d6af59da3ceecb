package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Discovery.VolumeThreshold < 0 {
		t.Fatal("expected non-negative volume threshold")
	}
	if cfg.WSManager.Connections <= 0 {
		t.Fatal("expected positive ws connections")
	}
	if !cfg.DryRun {
		t.Fatal("expected dry run true by default")
	}
	if cfg.Risk.Risk.MaxDrawdownPct <= 0 {
		t.Fatal("expected positive max_drawdown_pct by default")
	}
	if cfg.Risk.Risk.MaxPositions <= 0 {
		t.Fatal("expected positive max_positions by default")
	}
	if cfg.TradingMode != "paper" {
		t.Fatalf("expected trading_mode=paper by default, got %q", cfg.TradingMode)
	}
	if cfg.Paper.InitialBalanceUSD <= 0 {
		t.Fatal("expected positive paper initial_balance_usd by default")
	}
	if !cfg.Paper.AllowShort {
		t.Fatal("expected paper allow_short=true by default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	yaml := `
trading_mode: live
discovery:
  volume_threshold: 750
ws_manager:
  connections: 6
  per_connection_cap: 400
risk_execution:
  mode: live
  risk:
    max_positions: 4
    max_drawdown_pct: 0.15
  sizing:
    method: kelly
    kelly_fraction: 0.2
paper:
  initial_balance_usd: 2000
  fee_bps: 12
  slippage_bps: 8
  allow_short: false
`
	f, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte(yaml)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TradingMode != "live" {
		t.Fatalf("expected trading_mode live, got %q", cfg.TradingMode)
	}
	if cfg.Discovery.VolumeThreshold != 750 {
		t.Fatalf("expected volume threshold 750, got %f", cfg.Discovery.VolumeThreshold)
	}
	if cfg.WSManager.Connections != 6 {
		t.Fatalf("expected 6 ws connections, got %d", cfg.WSManager.Connections)
	}
	if cfg.WSManager.PerConnectionCap != 400 {
		t.Fatalf("expected per-connection cap 400, got %d", cfg.WSManager.PerConnectionCap)
	}
	if cfg.Risk.Risk.MaxPositions != 4 {
		t.Fatalf("expected max_positions 4, got %d", cfg.Risk.Risk.MaxPositions)
	}
	if cfg.Risk.Risk.MaxDrawdownPct != 0.15 {
		t.Fatalf("expected max_drawdown_pct 0.15, got %f", cfg.Risk.Risk.MaxDrawdownPct)
	}
	if cfg.Risk.Sizing.Method != "kelly" {
		t.Fatalf("expected sizing method kelly, got %q", cfg.Risk.Sizing.Method)
	}
	if cfg.Paper.InitialBalanceUSD != 2000 {
		t.Fatalf("expected paper initial balance 2000, got %f", cfg.Paper.InitialBalanceUSD)
	}
	if cfg.Paper.AllowShort {
		t.Fatal("expected paper allow_short=false from yaml")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TRADER_DRY_RUN", "false")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.DryRun {
		t.Fatal("expected dry run false from env")
	}
}

func TestLoadFileInvalidPath(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	f, err := os.CreateTemp("", "bad-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write([]byte("{{invalid yaml")); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = LoadFile(f.Name())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestApplyEnvAllVars(t *testing.T) {
	t.Setenv("POLYMARKET_PK", "test-pk")
	t.Setenv("POLYMARKET_API_KEY", "test-key")
	t.Setenv("POLYMARKET_API_SECRET", "test-secret")
	t.Setenv("POLYMARKET_API_PASSPHRASE", "test-pass")
	t.Setenv("BUILDER_KEY", "builder-key")
	t.Setenv("BUILDER_SECRET", "builder-secret")
	t.Setenv("BUILDER_PASSPHRASE", "builder-pass")
	t.Setenv("TRADER_DRY_RUN", "1")
	t.Setenv("TRADER_PAPER_ALLOW_SHORT", "false")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.PrivateKey != "test-pk" {
		t.Fatalf("expected PrivateKey test-pk, got %s", cfg.PrivateKey)
	}
	if cfg.APIKey != "test-key" {
		t.Fatalf("expected APIKey test-key, got %s", cfg.APIKey)
	}
	if cfg.APISecret != "test-secret" {
		t.Fatalf("expected APISecret test-secret, got %s", cfg.APISecret)
	}
	if cfg.APIPassphrase != "test-pass" {
		t.Fatalf("expected APIPassphrase test-pass, got %s", cfg.APIPassphrase)
	}
	if cfg.BuilderKey != "builder-key" {
		t.Fatalf("expected BuilderKey builder-key, got %s", cfg.BuilderKey)
	}
	if cfg.BuilderSecret != "builder-secret" {
		t.Fatalf("expected BuilderSecret builder-secret, got %s", cfg.BuilderSecret)
	}
	if cfg.BuilderPassphrase != "builder-pass" {
		t.Fatalf("expected BuilderPassphrase builder-pass, got %s", cfg.BuilderPassphrase)
	}
	if !cfg.DryRun {
		t.Fatal("expected DryRun true from env '1'")
	}
	if cfg.Paper.AllowShort {
		t.Fatal("expected Paper.AllowShort false from env")
	}
}

func TestApplyEnvDryRunTrue(t *testing.T) {
	t.Setenv("TRADER_DRY_RUN", "true")
	cfg := Default()
	cfg.DryRun = false
	cfg.ApplyEnv()
	if !cfg.DryRun {
		t.Fatal("expected DryRun true from env 'true'")
	}
}

func TestApplyEnvTradingMode(t *testing.T) {
	t.Setenv("TRADER_TRADING_MODE", "LIVE")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.TradingMode != "live" {
		t.Fatalf("expected trading mode from env to be live, got %q", cfg.TradingMode)
	}
	if cfg.Risk.Mode != "live" {
		t.Fatalf("expected risk_execution.mode from env to be live, got %q", cfg.Risk.Mode)
	}
}

func TestApplyEnvPaperAllowShort(t *testing.T) {
	t.Setenv("TRADER_PAPER_ALLOW_SHORT", "1")
	cfg := Default()
	cfg.Paper.AllowShort = false
	cfg.ApplyEnv()
	if !cfg.Paper.AllowShort {
		t.Fatal("expected Paper.AllowShort true from env '1'")
	}
}

func TestLoadDefaultsTradingAndStore(t *testing.T) {
	cfg := Default()
	if cfg.Trading.ScanInterval <= 0 {
		t.Fatal("expected positive trading.scan_interval by default")
	}
	if cfg.Trading.CapitalBaseUSD <= 0 {
		t.Fatal("expected positive trading.capital_base_usd by default")
	}
	if cfg.Store.Path != ":memory:" {
		t.Fatalf("expected in-memory store by default, got %q", cfg.Store.Path)
	}
}
