package scanner

import (
	"testing"
	"time"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/types"
)

func TestScanSkipsMarketsWithoutASnapshotYet(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, EndDate: time.Now().Add(time.Hour)})
	store := NewSnapshotStore(10)

	s := New(reg, store)
	views := s.Scan(Options{})
	if len(views) != 0 {
		t.Fatalf("expected no views before any snapshot, got %d", len(views))
	}
}

func TestScanJoinsLatestSnapshot(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, EndDate: time.Now().Add(time.Hour)})
	store := NewSnapshotStore(10)
	store.OnSnapshot(types.Snapshot{ConditionID: "c1", Price: 0.71, PriceOk: true, Timestamp: time.Now()})

	s := New(reg, store)
	views := s.Scan(Options{})
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].Price != 0.71 {
		t.Fatalf("expected price 0.71, got %f", views[0].Price)
	}
	if views[0].PriceHistory != nil {
		t.Fatal("expected no price history without opting in")
	}
}

func TestScanWithPriceHistoryPopulatesSeries(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, EndDate: time.Now().Add(time.Hour)})
	store := NewSnapshotStore(10)
	now := time.Now()
	store.OnSnapshot(types.Snapshot{ConditionID: "c1", Price: 0.5, PriceOk: true, Timestamp: now})
	store.OnSnapshot(types.Snapshot{ConditionID: "c1", Price: 0.55, PriceOk: true, Timestamp: now.Add(time.Minute)})

	s := New(reg, store)
	views := s.Scan(WithPriceHistory())
	if len(views[0].PriceHistory) != 2 {
		t.Fatalf("expected 2 history points, got %d", len(views[0].PriceHistory))
	}
}

func TestSnapshotStoreHistoryCapsAtConfiguredSize(t *testing.T) {
	store := NewSnapshotStore(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		store.OnSnapshot(types.Snapshot{ConditionID: "c1", Price: float64(i), PriceOk: true, Timestamp: now.Add(time.Duration(i) * time.Second)})
	}
	h := store.History("c1")
	if len(h) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(h))
	}
	if h[0].Price != 2 {
		t.Fatalf("expected oldest retained point price 2, got %f", h[0].Price)
	}
}
