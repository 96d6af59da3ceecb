// Package reaper closes out positions once their market resolves, on a
// periodic poll-and-settle loop rather than a resolution-event hook: this
// system has no live order book to cancel against in paper mode, and needs
// terminal-payoff settlement either way.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/risk"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// Config bounds the poll cadence and the INVALID-outcome settlement price.
type Config struct {
	PollInterval         time.Duration
	InvalidRecoveryPrice float64
}

// Reaper is the single owner of the open->closed transition for settled
// markets: it resolves markets in the registry and closes every open
// position on them at terminal payoff, realizing P&L into the owning
// strategy's wallet.
type Reaper struct {
	discovery *venue.DiscoveryClient
	registry  *market.Registry
	riskMgr   *risk.Manager
	cfg       Config
	log       zerolog.Logger

	mu           sync.Mutex
	wins, losses int
}

func New(discovery *venue.DiscoveryClient, registry *market.Registry, riskMgr *risk.Manager, cfg Config, log zerolog.Logger) *Reaper {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.InvalidRecoveryPrice <= 0 {
		cfg.InvalidRecoveryPrice = 0.5
	}
	return &Reaper{discovery: discovery, registry: registry, riskMgr: riskMgr, cfg: cfg, log: log}
}

// SweepOnce queries the venue for closed markets, resolves the ones whose
// outcome is now unambiguous, and settles every open position on them.
func (r *Reaper) SweepOnce(ctx context.Context) (settled int, err error) {
	resolved, err := r.discovery.ListResolved(ctx)
	if err != nil {
		return 0, fmt.Errorf("list resolved markets: %w", err)
	}

	now := time.Now()
	for _, d := range resolved {
		if !d.HasPrices {
			continue
		}
		outcome := classify(d)
		if outcome == types.OutcomeNone {
			continue
		}
		m, changed := r.registry.Resolve(d.ConditionID, outcome, now)
		if !changed {
			continue
		}
		n := r.settlePositions(m, outcome, now)
		settled += n
		r.log.Info().
			Str("condition_id", m.ConditionID).
			Str("outcome", string(outcome)).
			Int("positions_closed", n).
			Msg("market resolved")
	}
	return settled, nil
}

// classify maps Gamma's indicative outcome prices to a terminal Outcome:
// near 1.0/0.0 is an unambiguous win for one side, near 0.5/0.5 is an
// INVALID settlement, anything else is left unresolved for now rather than
// guessed at — the price pair only firms up once UMA finalizes.
func classify(d venue.ResolutionDescriptor) types.Outcome {
	switch {
	case d.YesPrice >= 0.99 && d.NoPrice <= 0.01:
		return types.OutcomeYes
	case d.NoPrice >= 0.99 && d.YesPrice <= 0.01:
		return types.OutcomeNo
	case d.YesPrice >= 0.49 && d.YesPrice <= 0.51 && d.NoPrice >= 0.49 && d.NoPrice <= 0.51:
		return types.OutcomeInvalid
	default:
		return types.OutcomeNone
	}
}

func (r *Reaper) settlePositions(m types.Market, outcome types.Outcome, at time.Time) int {
	positions := r.riskMgr.PositionsForMarket(m.ConditionID)
	for _, pos := range positions {
		payoff := terminalPayoff(pos.TokenID, m, outcome, r.cfg.InvalidRecoveryPrice)
		pos.SettleTerminal(payoff, 0, at)
		r.riskMgr.ClosePosition(pos)

		r.mu.Lock()
		switch {
		case pos.RealizedPnL > 0:
			r.wins++
		case pos.RealizedPnL < 0:
			r.losses++
		}
		r.mu.Unlock()
	}
	return len(positions)
}

// terminalPayoff is the per-share settlement price for a token once its
// market resolves: 1.0 for the winning side, 0.0 for the losing side, the
// configured recovery price for both sides of an INVALID market.
func terminalPayoff(tokenID string, m types.Market, outcome types.Outcome, invalidRecoveryPrice float64) float64 {
	if outcome == types.OutcomeInvalid {
		return invalidRecoveryPrice
	}
	isYesToken := tokenID == m.YesTokenID
	won := (outcome == types.OutcomeYes) == isYesToken
	if won {
		return 1.0
	}
	return 0.0
}

// WinLossCounts reports cumulative settled win/loss counts across every
// strategy, for callers that want the aggregate without walking wallets.
func (r *Reaper) WinLossCounts() (wins, losses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wins, r.losses
}

// Run polls SweepOnce on cfg.PollInterval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.SweepOnce(ctx); err != nil {
				r.log.Warn().Err(err).Msg("resolution sweep failed")
			}
		}
	}
}
