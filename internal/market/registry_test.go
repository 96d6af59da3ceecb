package market

import (
	"testing"
	"time"

	"github.com/polyharvest/tiered-trader/internal/types"
)

func TestRecomputeTiersEmitsTransitionOnChange(t *testing.T) {
	r := NewRegistry(nil, DiscoveryFilter{})
	now := time.Now()
	r.markets["c1"] = &types.Market{
		ConditionID: "c1",
		EndDate:     now.Add(30 * time.Minute),
		Active:      true,
		Tier:        2,
	}

	changes := r.RecomputeTiers(now)
	if len(changes) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(changes))
	}
	if changes[0].ToTier != 4 {
		t.Fatalf("expected promotion to tier 4, got %d", changes[0].ToTier)
	}
	m, _ := r.Get("c1")
	if m.Tier != 4 {
		t.Fatalf("expected market tier updated to 4, got %d", m.Tier)
	}
}

func TestRecomputeTiersNoChangeNoTransition(t *testing.T) {
	r := NewRegistry(nil, DiscoveryFilter{})
	now := time.Now()
	r.markets["c1"] = &types.Market{
		ConditionID: "c1",
		EndDate:     now.Add(100 * time.Hour),
		Active:      true,
		Tier:        0,
	}
	changes := r.RecomputeTiers(now)
	if len(changes) != 0 {
		t.Fatalf("expected no transitions, got %d", len(changes))
	}
}

func TestDeactivateSetsInactiveAndRecordsTransition(t *testing.T) {
	r := NewRegistry(nil, DiscoveryFilter{})
	now := time.Now()
	r.markets["c1"] = &types.Market{ConditionID: "c1", Active: true, Tier: 3}

	r.Deactivate("c1", types.ReasonResolved, now)

	m, _ := r.Get("c1")
	if m.Active {
		t.Fatal("expected market inactive after Deactivate")
	}
	transitions := r.Transitions()
	if len(transitions) != 1 || transitions[0].ToTier != -1 {
		t.Fatalf("expected terminal transition recorded, got %+v", transitions)
	}
}

func TestSweepStaleDeactivatesPastThreshold(t *testing.T) {
	r := NewRegistry(nil, DiscoveryFilter{})
	now := time.Now()
	r.markets["stale"] = &types.Market{
		ConditionID:       "stale",
		Active:            true,
		Tier:              4,
		TrackingStartedAt: now.Add(-2 * time.Hour),
	}
	r.markets["fresh"] = &types.Market{
		ConditionID:       "fresh",
		Active:            true,
		Tier:              4,
		TrackingStartedAt: now,
		LastTradeAt:       now,
	}

	swept := r.SweepStale(now)
	if len(swept) != 1 || swept[0] != "stale" {
		t.Fatalf("expected only 'stale' swept, got %v", swept)
	}
	m, _ := r.Get("fresh")
	if !m.Active {
		t.Fatal("expected 'fresh' market to remain active")
	}
}

func TestByTierSortsByHoursToCloseAscending(t *testing.T) {
	r := NewRegistry(nil, DiscoveryFilter{})
	now := time.Now()
	r.markets["far"] = &types.Market{ConditionID: "far", Active: true, Tier: 2, EndDate: now.Add(11 * time.Hour)}
	r.markets["near"] = &types.Market{ConditionID: "near", Active: true, Tier: 2, EndDate: now.Add(4 * time.Hour)}

	ids := r.ByTier(2, now)
	if len(ids) != 2 || ids[0] != "near" || ids[1] != "far" {
		t.Fatalf("expected [near far], got %v", ids)
	}
}
