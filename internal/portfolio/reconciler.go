// Package portfolio periodically pulls live on-chain positions and value
// from the Data API and reconciles them against the risk gate's tracked
// positions — the live-mode check that the paper wallet's bookkeeping
// never needs, since nothing external can drift from it.
package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/data"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/risk"
)

// Discrepancy is one token whose on-chain exposure disagrees with the risk
// gate's tracked cost basis by more than the reconciler's tolerance.
type Discrepancy struct {
	TokenID    string
	TrackedUSD float64
	OnChainUSD float64
}

// Reconciler syncs live positions from the Data API and flags drift
// against the risk gate: a periodic Sync/Run pull over data.Client and
// common.Address, plus a Reconcile step comparing the pulled snapshot
// against the risk gate's own in-process position ledger.
type Reconciler struct {
	dataClient   data.Client
	userAddr     common.Address
	riskMgr      *risk.Manager
	syncInterval time.Duration
	tolerance    float64
	log          zerolog.Logger

	mu         sync.RWMutex
	positions  []data.Position
	totalValue float64
	lastSync   time.Time
}

func NewReconciler(dataClient data.Client, userAddr common.Address, riskMgr *risk.Manager, syncInterval time.Duration, tolerance float64, log zerolog.Logger) *Reconciler {
	if tolerance <= 0 {
		tolerance = 1
	}
	return &Reconciler{
		dataClient:   dataClient,
		userAddr:     userAddr,
		riskMgr:      riskMgr,
		syncInterval: syncInterval,
		tolerance:    tolerance,
		log:          log,
	}
}

// Sync fetches current positions and portfolio value from the Data API.
func (r *Reconciler) Sync(ctx context.Context) error {
	positions, err := r.dataClient.Positions(ctx, &data.PositionsRequest{User: r.userAddr})
	if err != nil {
		return err
	}
	values, err := r.dataClient.Value(ctx, &data.ValueRequest{User: r.userAddr})
	if err != nil {
		return err
	}
	var totalValue float64
	for _, v := range values {
		f, _ := v.Value.Float64()
		totalValue += f
	}

	r.mu.Lock()
	r.positions = positions
	r.totalValue = totalValue
	r.lastSync = time.Now()
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) Positions() []data.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions
}

func (r *Reconciler) TotalValue() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalValue
}

func (r *Reconciler) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}

// RecentTrades fetches recent trades from the Data API.
func (r *Reconciler) RecentTrades(ctx context.Context, limit int) ([]data.Trade, error) {
	return r.dataClient.Trades(ctx, &data.TradesRequest{User: &r.userAddr, Limit: &limit})
}

// Reconcile compares the last-synced on-chain positions against the risk
// gate's tracked cost basis per token and returns every token whose
// difference exceeds the configured tolerance.
func (r *Reconciler) Reconcile(trackedUSDByToken map[string]float64) []Discrepancy {
	r.mu.RLock()
	positions := r.positions
	r.mu.RUnlock()

	onChain := make(map[string]float64, len(positions))
	for _, p := range positions {
		size, _ := p.Size.Float64()
		price, _ := p.AvgPrice.Float64()
		onChain[p.Asset] += size * price
	}

	var out []Discrepancy
	seen := make(map[string]bool)
	for tokenID, tracked := range trackedUSDByToken {
		seen[tokenID] = true
		chain := onChain[tokenID]
		if diff := abs(tracked - chain); diff > r.tolerance {
			out = append(out, Discrepancy{TokenID: tokenID, TrackedUSD: tracked, OnChainUSD: chain})
		}
	}
	for tokenID, chain := range onChain {
		if seen[tokenID] {
			continue
		}
		if diff := abs(chain); diff > r.tolerance {
			out = append(out, Discrepancy{TokenID: tokenID, TrackedUSD: 0, OnChainUSD: chain})
		}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Run starts the periodic sync-then-reconcile loop against the risk
// gate's tracked positions. Blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Sync(ctx); err != nil {
		r.log.Warn().Err(err).Msg("portfolio initial sync failed")
	}

	ticker := time.NewTicker(r.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				r.log.Warn().Err(err).Msg("portfolio sync failed")
				continue
			}
			for _, d := range r.Reconcile(r.riskMgr.TrackedExposureByToken()) {
				r.log.Warn().
					Str("token_id", d.TokenID).
					Float64("tracked_usd", d.TrackedUSD).
					Float64("on_chain_usd", d.OnChainUSD).
					Msg("position drift between risk gate and on-chain state")
			}
		}
	}
}
