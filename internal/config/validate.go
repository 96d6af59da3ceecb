package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.TradingMode))
	if mode != "" && mode != "paper" && mode != "live" {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}
	if c.Risk.Mode != "" && c.Risk.Mode != "paper" && c.Risk.Mode != "live" {
		return fmt.Errorf("risk_execution.mode must be 'paper' or 'live', got %q", c.Risk.Mode)
	}

	if c.Paper.InitialBalanceUSD <= 0 {
		return fmt.Errorf("paper.initial_balance_usd must be > 0, got %f", c.Paper.InitialBalanceUSD)
	}
	if c.Paper.FeeBps < 0 {
		return fmt.Errorf("paper.fee_bps must be >= 0, got %f", c.Paper.FeeBps)
	}
	if c.Paper.SlippageBps < 0 {
		return fmt.Errorf("paper.slippage_bps must be >= 0, got %f", c.Paper.SlippageBps)
	}

	if c.Discovery.VolumeThreshold < 0 {
		return fmt.Errorf("discovery.volume_threshold must be >= 0, got %f", c.Discovery.VolumeThreshold)
	}
	if c.Discovery.LookaheadHours <= 0 {
		return fmt.Errorf("discovery.lookahead_hours must be > 0, got %f", c.Discovery.LookaheadHours)
	}
	if c.Discovery.Interval <= 0 {
		return fmt.Errorf("discovery.interval must be > 0, got %s", c.Discovery.Interval)
	}

	if c.WSManager.Connections <= 0 {
		return fmt.Errorf("ws_manager.connections must be > 0, got %d", c.WSManager.Connections)
	}
	if c.WSManager.PerConnectionCap <= 0 {
		return fmt.Errorf("ws_manager.per_connection_cap must be > 0, got %d", c.WSManager.PerConnectionCap)
	}
	if c.WSManager.RefreshInterval <= 0 {
		return fmt.Errorf("ws_manager.refresh_interval must be > 0, got %s", c.WSManager.RefreshInterval)
	}

	if c.RingBuffer.Capacity <= 0 {
		return fmt.Errorf("ring_buffer.capacity must be > 0, got %d", c.RingBuffer.Capacity)
	}
	if c.RingBuffer.TTL <= 0 {
		return fmt.Errorf("ring_buffer.ttl must be > 0, got %s", c.RingBuffer.TTL)
	}

	if c.Risk.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk_execution.risk.max_positions must be > 0, got %d", c.Risk.Risk.MaxPositions)
	}
	if c.Risk.Risk.MaxDrawdownPct < 0 || c.Risk.Risk.MaxDrawdownPct > 1 {
		return fmt.Errorf("risk_execution.risk.max_drawdown_pct must be within [0,1], got %f", c.Risk.Risk.MaxDrawdownPct)
	}
	if c.Risk.Risk.MaxPositionUSD <= 0 {
		return fmt.Errorf("risk_execution.risk.max_position_usd must be > 0, got %f", c.Risk.Risk.MaxPositionUSD)
	}
	if c.Risk.Risk.MaxTotalExposureUSD <= 0 {
		return fmt.Errorf("risk_execution.risk.max_total_exposure_usd must be > 0, got %f", c.Risk.Risk.MaxTotalExposureUSD)
	}

	switch c.Risk.Sizing.Method {
	case "", "fixed", "kelly", "volatility_scaled":
	default:
		return fmt.Errorf("risk_execution.sizing.method must be one of fixed|kelly|volatility_scaled, got %q", c.Risk.Sizing.Method)
	}
	if c.Risk.Sizing.Method == "kelly" && (c.Risk.Sizing.KellyFraction <= 0 || c.Risk.Sizing.KellyFraction > 1) {
		return fmt.Errorf("risk_execution.sizing.kelly_fraction must be within (0,1], got %f", c.Risk.Sizing.KellyFraction)
	}

	switch c.Risk.Execution.DefaultOrderType {
	case "", "market", "limit", "spread":
	default:
		return fmt.Errorf("risk_execution.execution.default_order_type must be one of market|limit|spread, got %q", c.Risk.Execution.DefaultOrderType)
	}

	return nil
}
