// Package ledger keeps the append-only trail of every signal the strategy
// set produced and the risk gate's verdict on it: a mutex-guarded slice
// capped at maxKeep entries in memory, with every entry persisted to a
// durable backing store regardless of the cap.
package ledger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/store"
	"github.com/polyharvest/tiered-trader/internal/types"
)

// Ledger is the in-memory decision trail plus its durable mirror.
type Ledger struct {
	mu      sync.RWMutex
	recent  []types.TradeDecision
	maxKeep int

	backing store.Store
	log     zerolog.Logger
}

func New(backing store.Store, maxKeep int, log zerolog.Logger) *Ledger {
	if maxKeep <= 0 {
		maxKeep = 10000
	}
	return &Ledger{backing: backing, maxKeep: maxKeep, log: log}
}

// Record appends a decision to the in-memory trail and persists it.
// Persistence failures are logged, not returned: a ledger write must never
// block or unwind a trading decision that already happened.
func (l *Ledger) Record(ctx context.Context, d types.TradeDecision) {
	l.mu.Lock()
	l.recent = append(l.recent, d)
	if len(l.recent) > l.maxKeep {
		l.recent = l.recent[len(l.recent)-l.maxKeep:]
	}
	l.mu.Unlock()

	if l.backing == nil {
		return
	}
	if err := l.backing.AppendDecision(ctx, toRecord(d)); err != nil {
		l.log.Warn().Err(err).Str("strategy", d.Signal.Strategy).Msg("failed to persist trade decision")
	}
}

// Recent returns the last n recorded decisions, oldest first. n<=0 returns
// everything currently kept in memory.
func (l *Ledger) Recent(n int) []types.TradeDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n >= len(l.recent) {
		out := make([]types.TradeDecision, len(l.recent))
		copy(out, l.recent)
		return out
	}
	out := make([]types.TradeDecision, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}

// Len reports how many decisions are currently held in memory.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.recent)
}

func toRecord(d types.TradeDecision) store.DecisionRecord {
	rec := store.DecisionRecord{
		Strategy:    d.Signal.Strategy,
		ConditionID: d.Signal.ConditionID,
		TokenID:     d.Signal.TokenID,
		Side:        string(d.Signal.Side),
		Edge:        d.Signal.Edge,
		Confidence:  d.Signal.Confidence,
		Approved:    d.Approved,
		Reason:      string(d.Reason),
		Decided:     d.Decided,
	}
	if d.Order != nil {
		rec.OrderType = d.Order.Type
		rec.SizeUSD = d.Order.SizeUSD
	}
	if d.Fill != nil {
		rec.FillPrice = d.Fill.Price
		rec.FillShares = d.Fill.Shares
	}
	return rec
}
