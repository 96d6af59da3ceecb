package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document shared by cmd/collector and
// cmd/trader; each binary reads only the sections it needs.
type Config struct {
	PrivateKey        string `yaml:"private_key"`
	APIKey            string `yaml:"api_key"`
	APISecret         string `yaml:"api_secret"`
	APIPassphrase     string `yaml:"api_passphrase"`
	BuilderKey        string `yaml:"builder_key"`
	BuilderSecret     string `yaml:"builder_secret"`
	BuilderPassphrase string `yaml:"builder_passphrase"`

	DryRun      bool   `yaml:"dry_run"`
	TradingMode string `yaml:"trading_mode"` // paper|live
	LogLevel    string `yaml:"log_level"`

	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	WSManager  WSManagerConfig  `yaml:"ws_manager"`
	RingBuffer RingBufferConfig `yaml:"ring_buffer"`
	Whale      WhaleConfig      `yaml:"whale"`

	Strategies StrategiesDocument `yaml:"strategies"`
	Risk       RiskDocument       `yaml:"risk_execution"`
	Paper      PaperConfig        `yaml:"paper"`
	Telegram   TelegramConfig     `yaml:"telegram"`
	Trading    TradingConfig      `yaml:"trading"`
	Store      StoreConfig        `yaml:"store"`
}

// TradingConfig bounds the trading engine's own loop, separate from the
// collection pipeline's tier tickers.
type TradingConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval"`
	CapitalBaseUSD float64       `yaml:"capital_base_usd"` // per-strategy wallets are sized as SizePct of this
}

// StoreConfig selects the persisted-state backend. Path == "" or ":memory:"
// keeps everything in an in-memory store, suitable for paper trading and
// tests; any other path opens a modernc.org/sqlite file at that path.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DiscoveryConfig bounds internal/market.Registry.DiscoverOnce filtering.
type DiscoveryConfig struct {
	VolumeThreshold float64       `yaml:"volume_threshold"`
	LookaheadHours  float64       `yaml:"lookahead_hours"`
	Interval        time.Duration `yaml:"interval"`
}

// SchedulerConfig bounds the per-tier polling loops and stale sweeps.
type SchedulerConfig struct {
	ReclassifyInterval time.Duration `yaml:"reclassify_interval"`
	StaleSweepInterval time.Duration `yaml:"stale_sweep_interval"`
}

// WSManagerConfig bounds the websocket subscription pool.
type WSManagerConfig struct {
	Connections      int           `yaml:"connections"`        // K
	PerConnectionCap int           `yaml:"per_connection_cap"` // M
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	StaggerSeconds   int           `yaml:"stagger_seconds"`
	MinTradeRate     float64       `yaml:"min_trade_rate_per_min"`
	StaleAfter       time.Duration `yaml:"stale_after"`
	EnabledTiers     []int         `yaml:"enabled_tiers"`
}

// RingBufferConfig bounds the per-market trade buffer.
type RingBufferConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// WhaleConfig holds the size thresholds splitting trades into whale tiers 1..3.
type WhaleConfig struct {
	Tier1Size float64 `yaml:"tier1_size"`
	Tier2Size float64 `yaml:"tier2_size"`
	Tier3Size float64 `yaml:"tier3_size"`
}

func (w WhaleConfig) Thresholds() [3]float64 {
	return [3]float64{w.Tier1Size, w.Tier2Size, w.Tier3Size}
}

// StrategyInstance is one configured instance of a strategy type.
type StrategyInstance struct {
	Name      string         `yaml:"name"`
	Enabled   *bool          `yaml:"enabled"`
	SizePct   float64        `yaml:"size_pct"`
	OrderType string         `yaml:"order_type"`
	Params    map[string]any `yaml:"params"`
}

// StrategiesDocument maps strategy type name to its configured instances,
// plus a defaults block every instance missing a field falls back to.
type StrategiesDocument struct {
	Defaults map[string]any                `yaml:"defaults"`
	Types    map[string][]StrategyInstance `yaml:"types"`
}

// RiskDocument is the risk/execution document.
type RiskDocument struct {
	Mode string `yaml:"mode"` // paper|live

	Risk struct {
		MaxPositionUSD      float64 `yaml:"max_position_usd"`
		MaxTotalExposureUSD float64 `yaml:"max_total_exposure_usd"`
		MaxPositions        int     `yaml:"max_positions"`
		MaxDrawdownPct      float64 `yaml:"max_drawdown_pct"`
	} `yaml:"risk"`

	Sizing struct {
		Method          string  `yaml:"method"` // fixed|kelly|volatility_scaled
		FixedAmountUSD  float64 `yaml:"fixed_amount_usd"`
		KellyFraction   float64 `yaml:"kelly_fraction"`
		MinSizeUSD      float64 `yaml:"min_size_usd"`
		MaxSizeUSD      float64 `yaml:"max_size_usd"`
		VolatilityFloor float64 `yaml:"volatility_floor"` // reference stdev volatility_scaled sizes against
	} `yaml:"sizing"`

	Execution struct {
		DefaultOrderType     string  `yaml:"default_order_type"` // market|limit|spread
		LimitOffsetBps       float64 `yaml:"limit_offset_bps"`
		SpreadTimeoutSeconds int     `yaml:"spread_timeout_seconds"`
	} `yaml:"execution"`

	InvalidRecoveryPrice float64 `yaml:"invalid_recovery_price"`
}

type PaperConfig struct {
	InitialBalanceUSD float64 `yaml:"initial_balance_usd"`
	FeeBps            float64 `yaml:"fee_bps"`
	SlippageBps       float64 `yaml:"slippage_bps"`       // base_slippage
	SlippageDepthK    float64 `yaml:"slippage_depth_k"`   // k in base_slippage + k*(size/depth_at_best)
	MaxSlippageBps    float64 `yaml:"max_slippage_bps"`   // ceiling; 0 defaults to 3x base_slippage
	AllowShort        bool    `yaml:"allow_short"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

func Default() Config {
	cfg := Config{
		DryRun:      true,
		TradingMode: "paper",
		LogLevel:    "info",
		Discovery: DiscoveryConfig{
			VolumeThreshold: 500,
			LookaheadHours:  24 * 30,
			Interval:        60 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			ReclassifyInterval: 5 * time.Minute,
			StaleSweepInterval: 10 * time.Minute,
		},
		WSManager: WSManagerConfig{
			Connections:      4,
			PerConnectionCap: 500,
			RefreshInterval:  60 * time.Second,
			StaggerSeconds:   2,
			MinTradeRate:     30,
			StaleAfter:       5 * time.Minute,
			EnabledTiers:     []int{2, 3, 4},
		},
		RingBuffer: RingBufferConfig{
			Capacity: 10000,
			TTL:      2 * time.Hour,
		},
		Whale: WhaleConfig{
			Tier1Size: 500,
			Tier2Size: 2500,
			Tier3Size: 10000,
		},
		Paper: PaperConfig{
			InitialBalanceUSD: 1000,
			FeeBps:            10,
			SlippageBps:       10,
			SlippageDepthK:    5,
			AllowShort:        true,
		},
		Trading: TradingConfig{
			ScanInterval:   30 * time.Second,
			CapitalBaseUSD: 1000,
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
	}
	cfg.Risk.Mode = "paper"
	cfg.Risk.Risk.MaxPositionUSD = 50
	cfg.Risk.Risk.MaxTotalExposureUSD = 500
	cfg.Risk.Risk.MaxPositions = 10
	cfg.Risk.Risk.MaxDrawdownPct = 0.30
	cfg.Risk.Sizing.Method = "fixed"
	cfg.Risk.Sizing.FixedAmountUSD = 5
	cfg.Risk.Sizing.KellyFraction = 0.25
	cfg.Risk.Sizing.MinSizeUSD = 1
	cfg.Risk.Sizing.MaxSizeUSD = 50
	cfg.Risk.Sizing.VolatilityFloor = 0.02
	cfg.Risk.Execution.DefaultOrderType = "limit"
	cfg.Risk.Execution.LimitOffsetBps = 20
	cfg.Risk.Execution.SpreadTimeoutSeconds = 30
	cfg.Risk.InvalidRecoveryPrice = 0.5
	return cfg
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("POLYMARKET_PK"); v != "" {
		c.PrivateKey = v
	}
	if v := os.Getenv("POLYMARKET_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("POLYMARKET_API_SECRET"); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv("POLYMARKET_API_PASSPHRASE"); v != "" {
		c.APIPassphrase = v
	}
	if v := os.Getenv("BUILDER_KEY"); v != "" {
		c.BuilderKey = v
	}
	if v := os.Getenv("BUILDER_SECRET"); v != "" {
		c.BuilderSecret = v
	}
	if v := os.Getenv("BUILDER_PASSPHRASE"); v != "" {
		c.BuilderPassphrase = v
	}
	if v := os.Getenv("TRADER_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("TRADER_TRADING_MODE")); v != "" {
		c.TradingMode = strings.ToLower(v)
		c.Risk.Mode = c.TradingMode
	}
	if v := strings.TrimSpace(os.Getenv("TRADER_PAPER_ALLOW_SHORT")); v != "" {
		c.Paper.AllowShort = strings.EqualFold(v, "true") || v == "1"
	}
}
