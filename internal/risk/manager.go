// Package risk gates every strategy-emitted signal through an ordered set
// of checks (drawdown, per-strategy balance, position caps, deduplication)
// and sizes the approved ones. A mutex-guarded struct with one
// read-checking Evaluate entrypoint and a family of Register/Open/Close
// mutators, tracking per-strategy Wallet accounting rather than a single
// global account.
package risk

import (
	"fmt"
	"sync"

	"github.com/polyharvest/tiered-trader/internal/types"
)

// Config bounds the gate and its sizing method. Built by the caller from
// the risk/execution configuration document; kept separate from that
// document's yaml shape.
type Config struct {
	MaxPositionUSD      float64
	MaxTotalExposureUSD float64
	MaxPositions        int
	MaxDrawdownPct      float64

	SizingMethod    string // fixed|kelly|volatility_scaled
	FixedAmountUSD  float64
	KellyFraction   float64
	MinSizeUSD      float64
	MaxSizeUSD      float64
	VolatilityFloor float64 // reference stdev volatility_scaled sizes against
}

type positionKey struct {
	strategy    string
	conditionID string
	tokenID     string
}

// Manager is the risk gate plus per-strategy wallet accounting. Wallets
// must be registered (RegisterWallet) before a strategy's signals can be
// evaluated; an unregistered strategy always rejects on insufficient
// balance rather than panicking.
type Manager struct {
	mu        sync.RWMutex
	cfg       Config
	wallets   map[string]*types.Wallet
	positions map[positionKey]*types.Position
}

func New(cfg Config) *Manager {
	if cfg.SizingMethod == "" {
		cfg.SizingMethod = "fixed"
	}
	return &Manager{
		cfg:       cfg,
		wallets:   make(map[string]*types.Wallet),
		positions: make(map[positionKey]*types.Position),
	}
}

// RegisterWallet creates or resets a strategy's wallet with the given
// starting allocation.
func (m *Manager) RegisterWallet(strategy string, allocatedUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[strategy] = &types.Wallet{
		Strategy:      strategy,
		AllocatedUSD:  allocatedUSD,
		AvailableUSD:  allocatedUSD,
		HighWaterMark: allocatedUSD,
	}
}

func (m *Manager) Wallet(strategy string) (types.Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[strategy]
	if !ok {
		return types.Wallet{}, false
	}
	return *w, true
}

// Evaluate runs the ordered risk gate against sig and, if approved, returns
// a sized Order. Checks run in a fixed order — once one rejects, later
// checks never run, so a rejection reason always names the first broken
// rule rather than the last one checked.
func (m *Manager) Evaluate(sig types.Signal) (*types.Order, types.RejectionReason, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, ok := m.wallets[sig.Strategy]
	if !ok {
		return nil, types.RejectInsufficientStrategyBal, fmt.Errorf("no wallet registered for strategy %q", sig.Strategy)
	}

	if m.cfg.MaxDrawdownPct > 0 && wallet.HighWaterMark > 0 {
		drawdown := (wallet.HighWaterMark - wallet.Balance()) / wallet.HighWaterMark
		if drawdown >= m.cfg.MaxDrawdownPct {
			return nil, types.RejectDrawdownExceeded, nil
		}
	}

	sizeUSD := m.size(sig, *wallet)
	if sizeUSD <= 0 || sizeUSD > wallet.AvailableUSD {
		return nil, types.RejectInsufficientStrategyBal, nil
	}

	if m.cfg.MaxPositions > 0 && len(m.positions) >= m.cfg.MaxPositions {
		return nil, types.RejectMaxPositions, nil
	}
	if m.cfg.MaxTotalExposureUSD > 0 && m.totalExposureLocked()+sizeUSD > m.cfg.MaxTotalExposureUSD {
		return nil, types.RejectMaxTotalExposure, nil
	}
	if m.cfg.MaxPositionUSD > 0 && sizeUSD > m.cfg.MaxPositionUSD {
		return nil, types.RejectMaxPositionUSD, nil
	}

	key := positionKey{strategy: sig.Strategy, conditionID: sig.ConditionID, tokenID: sig.TokenID}
	if _, exists := m.positions[key]; exists {
		return nil, types.RejectDuplicatePosition, nil
	}

	order := &types.Order{
		ConditionID: sig.ConditionID,
		TokenID:     sig.TokenID,
		Side:        sig.Side,
		SizeUSD:     sizeUSD,
	}
	return order, types.RejectNone, nil
}

// size dispatches to the configured sizing method. Kelly uses the signal's
// Price as the entry price and Confidence as the win probability. Every
// method's result goes through clampSize: capped at MaxSizeUSD, and a size
// below MinSizeUSD becomes 0 (rejected).
func (m *Manager) size(sig types.Signal, wallet types.Wallet) float64 {
	var raw float64
	switch m.cfg.SizingMethod {
	case "kelly":
		raw = m.kellySize(sig, wallet)
	case "volatility_scaled":
		raw = m.volatilityScaledSize(sig)
	default:
		raw = m.cfg.FixedAmountUSD
	}
	return m.clampSize(raw)
}

// kellySize applies f = (p*b - 1) / (b - 1) where b = 1/price is the payout
// multiple on a winning share, then scales by the configured Kelly
// fraction and the wallet's available capital.
func (m *Manager) kellySize(sig types.Signal, wallet types.Wallet) float64 {
	if sig.Price <= 0 || sig.Price >= 1 {
		return 0
	}
	p := sig.Confidence
	if p <= 0 || p >= 1 {
		return 0
	}
	b := 1 / sig.Price
	f := (p*b - 1) / (b - 1)
	if f <= 0 {
		return 0
	}
	fraction := m.cfg.KellyFraction
	if fraction <= 0 {
		fraction = 1
	}
	return fraction * f * wallet.AvailableUSD
}

// volatilityScaledSize divides the fixed base size by a volatility proxy —
// the rolling stdev of price history a strategy attaches to its signal's
// Metadata under "window_stddev" (see strategy/mean_reversion.go's
// meanAndStddev) — normalized against a reference floor so a market at
// exactly the floor's volatility sizes at the base amount. Sizing shrinks as
// volatility rises above the floor and grows as it falls below, clamped to
// [0.25x, 2x] of the base. A signal with no volatility figure attached sizes
// at the unscaled base.
func (m *Manager) volatilityScaledSize(sig types.Signal) float64 {
	base := m.cfg.FixedAmountUSD
	if base <= 0 {
		return 0
	}
	vol, ok := signalVolatility(sig)
	if !ok || vol <= 0 {
		return base
	}
	floor := m.cfg.VolatilityFloor
	if floor <= 0 {
		floor = 0.02
	}
	scale := floor / vol
	if scale < 0.25 {
		scale = 0.25
	}
	if scale > 2 {
		scale = 2
	}
	return base * scale
}

// signalVolatility extracts the volatility proxy a strategy may have
// attached to its signal's metadata, e.g. the window stdev mean_reversion
// computes for its own z-score test.
func signalVolatility(sig types.Signal) (float64, bool) {
	raw, ok := sig.Metadata["window_stddev"]
	if !ok {
		return 0, false
	}
	v, ok := raw.(float64)
	return v, ok
}

func (m *Manager) clampSize(sizeUSD float64) float64 {
	if m.cfg.MinSizeUSD > 0 && sizeUSD < m.cfg.MinSizeUSD {
		return 0
	}
	if m.cfg.MaxSizeUSD > 0 && sizeUSD > m.cfg.MaxSizeUSD {
		return m.cfg.MaxSizeUSD
	}
	return sizeUSD
}

func (m *Manager) totalExposureLocked() float64 {
	var total float64
	for _, p := range m.positions {
		total += p.CostBasis
	}
	return total
}

// OpenPosition records a newly filled position so later signals see it for
// deduplication and exposure accounting, and debits the wallet's available
// balance by its cost basis.
func (m *Manager) OpenPosition(pos *types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := positionKey{strategy: pos.Strategy, conditionID: pos.ConditionID, tokenID: pos.TokenID}
	m.positions[key] = pos
	if wallet, ok := m.wallets[pos.Strategy]; ok {
		wallet.AvailableUSD -= pos.CostBasis
	}
}

// ClosePosition removes a settled or closed position and reconciles its
// realized PnL back into the strategy's wallet, updating the wallet's
// high-water mark and win/loss counters.
func (m *Manager) ClosePosition(pos *types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := positionKey{strategy: pos.Strategy, conditionID: pos.ConditionID, tokenID: pos.TokenID}
	delete(m.positions, key)

	wallet, ok := m.wallets[pos.Strategy]
	if !ok {
		return
	}
	wallet.AvailableUSD += pos.CostBasis + pos.RealizedPnL
	wallet.RealizedPnL += pos.RealizedPnL
	wallet.TradeCount++
	switch {
	case pos.RealizedPnL > 0:
		wallet.WinCount++
	case pos.RealizedPnL < 0:
		wallet.LossCount++
	}
	if balance := wallet.Balance(); balance > wallet.HighWaterMark {
		wallet.HighWaterMark = balance
	} else if wallet.HighWaterMark > 0 {
		drawdown := (wallet.HighWaterMark - balance) / wallet.HighWaterMark
		if drawdown > wallet.MaxDrawdownPct {
			wallet.MaxDrawdownPct = drawdown
		}
	}
}

// OpenPositionCount reports how many positions are currently tracked, for
// callers that need the figure without the full position set.
func (m *Manager) OpenPositionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// PositionsForMarket returns every tracked open position on a condition id,
// across every strategy — the set the Resolution Reaper settles once that
// market resolves.
func (m *Manager) PositionsForMarket(conditionID string) []*types.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*types.Position
	for key, p := range m.positions {
		if key.conditionID == conditionID {
			out = append(out, p)
		}
	}
	return out
}

// TrackedExposureByToken sums tracked cost basis per token across every
// strategy — the figure live-mode position reconciliation compares
// against the venue's reported on-chain exposure.
func (m *Manager) TrackedExposureByToken() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.positions))
	for key, p := range m.positions {
		out[key.tokenID] += p.CostBasis
	}
	return out
}
