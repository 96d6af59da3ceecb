package store

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreMigratesAndRoundTripsDecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d := DecisionRecord{
		Strategy: "whale_fade", ConditionID: "c1", TokenID: "t1", Side: "BUY",
		Edge: 0.08, Confidence: 0.6, Approved: true, Reason: "", OrderType: "market",
		SizeUSD: 50, FillPrice: 0.45, FillShares: 111.1, Decided: time.Now(),
	}
	if err := s.AppendDecision(ctx, d); err != nil {
		t.Fatalf("AppendDecision: %v", err)
	}

	recent, err := s.RecentDecisions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(recent) != 1 || recent[0].Strategy != "whale_fade" || !recent[0].Approved {
		t.Fatalf("unexpected recent decisions: %+v", recent)
	}
}

func TestSQLiteStorePositionUpsertOverwritesAndFiltersByStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := PositionRecord{Strategy: "no_bias", ConditionID: "c1", TokenID: "t1", Status: "open", OpenedAt: time.Now()}
	if err := s.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	open, err := s.OpenPositions(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("expected 1 open position, got %d err=%v", len(open), err)
	}

	p.Status = "closed"
	p.ClosedAt = time.Now()
	if err := s.UpsertPosition(ctx, p); err != nil {
		t.Fatalf("UpsertPosition close: %v", err)
	}
	open, err = s.OpenPositions(ctx)
	if err != nil || len(open) != 0 {
		t.Fatalf("expected 0 open positions after close, got %d err=%v", len(open), err)
	}
}

func TestSQLiteStoreWalletSnapshotUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveWalletSnapshot(ctx, WalletRecord{Strategy: "s1", AvailableUSD: 500, SnapshotAt: time.Now()}); err != nil {
		t.Fatalf("SaveWalletSnapshot: %v", err)
	}
	if err := s.SaveWalletSnapshot(ctx, WalletRecord{Strategy: "s1", AvailableUSD: 750, SnapshotAt: time.Now()}); err != nil {
		t.Fatalf("SaveWalletSnapshot update: %v", err)
	}

	got, ok, err := s.LatestWalletSnapshot(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("expected snapshot, got ok=%v err=%v", ok, err)
	}
	if got.AvailableUSD != 750 {
		t.Fatalf("expected latest snapshot to overwrite, got %f", got.AvailableUSD)
	}
}
