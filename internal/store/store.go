// Package store is the persisted-state boundary: interfaces for the
// logical tables the trading engine needs durability for (trade_decisions/
// signals, positions, strategy_balances), with an in-memory implementation
// for tests and a modernc.org/sqlite-backed one for everything else.
// Markets, snapshots, trades, orderbook_snapshots, tier_transitions, and
// whale_events stay in the collection pipeline's own in-process stores
// (market.Registry, ringbuffer.Buffer, the snapshot assembler's caches) —
// this package only durabilizes the trading engine's decision trail, since
// that's what must survive a restart without replaying every signal.
package store

import (
	"context"
	"time"
)

// DecisionRecord is a persisted Signal+verdict+fill, matching the
// trade_decisions/signals logical tables.
type DecisionRecord struct {
	ID          int64
	Strategy    string
	ConditionID string
	TokenID     string
	Side        string
	Edge        float64
	Confidence  float64
	Approved    bool
	Reason      string
	OrderType   string
	SizeUSD     float64
	FillPrice   float64
	FillShares  float64
	Decided     time.Time
}

// PositionRecord is a persisted Position, matching the positions table.
type PositionRecord struct {
	Strategy      string
	ConditionID   string
	TokenID       string
	Side          string
	AvgEntryPrice float64
	SizeShares    float64
	CostBasis     float64
	Status        string
	RealizedPnL   float64
	OpenedAt      time.Time
	ClosedAt      time.Time
}

// WalletRecord is a persisted per-strategy balance snapshot, matching the
// strategy_balances/paper_balances tables.
type WalletRecord struct {
	Strategy      string
	AllocatedUSD  float64
	AvailableUSD  float64
	RealizedPnL   float64
	TradeCount    int
	WinCount      int
	LossCount     int
	HighWaterMark float64
	SnapshotAt    time.Time
}

// Store is the persisted-state boundary the rest of the system calls
// through. Callers depend only on this interface, never on a concrete
// backend, so swapping MemStore for SQLiteStore (or anything else) never
// touches a caller.
type Store interface {
	AppendDecision(ctx context.Context, d DecisionRecord) error
	RecentDecisions(ctx context.Context, limit int) ([]DecisionRecord, error)

	UpsertPosition(ctx context.Context, p PositionRecord) error
	OpenPositions(ctx context.Context) ([]PositionRecord, error)

	SaveWalletSnapshot(ctx context.Context, w WalletRecord) error
	LatestWalletSnapshot(ctx context.Context, strategy string) (WalletRecord, bool, error)

	Close() error
}
