package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/store"
	"github.com/polyharvest/tiered-trader/internal/types"
)

func decision(strategy string, approved bool) types.TradeDecision {
	return types.TradeDecision{
		Signal: types.Signal{
			Strategy: strategy, ConditionID: "c1", TokenID: "t1",
			Side: types.SideBuy, Edge: 0.05, Confidence: 0.6,
		},
		Approved: approved,
		Decided:  time.Now(),
	}
}

func TestRecordAppendsAndPersists(t *testing.T) {
	backing := store.NewMemStore()
	l := New(backing, 0, zerolog.Nop())
	ctx := context.Background()

	l.Record(ctx, decision("no_bias", true))
	l.Record(ctx, decision("longshot", false))

	if l.Len() != 2 {
		t.Fatalf("expected 2 recorded decisions, got %d", l.Len())
	}

	persisted, err := backing.RecentDecisions(ctx, 0)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted decisions, got %d", len(persisted))
	}
	if persisted[0].Strategy != "no_bias" || persisted[1].Strategy != "longshot" {
		t.Fatalf("unexpected persisted strategies: %+v", persisted)
	}
}

func TestRecordCapsInMemoryTrailAtMaxKeep(t *testing.T) {
	l := New(nil, 2, zerolog.Nop())
	ctx := context.Background()

	l.Record(ctx, decision("a", true))
	l.Record(ctx, decision("b", true))
	l.Record(ctx, decision("c", true))

	recent := l.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("expected trail capped to 2, got %d", len(recent))
	}
	if recent[0].Signal.Strategy != "b" || recent[1].Signal.Strategy != "c" {
		t.Fatalf("expected oldest entry evicted, got %+v", recent)
	}
}

func TestRecentNReturnsLastNOldestFirst(t *testing.T) {
	l := New(nil, 0, zerolog.Nop())
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c", "d"} {
		l.Record(ctx, decision(s, true))
	}

	last2 := l.Recent(2)
	if len(last2) != 2 || last2[0].Signal.Strategy != "c" || last2[1].Signal.Strategy != "d" {
		t.Fatalf("expected [c, d], got %+v", last2)
	}
}
