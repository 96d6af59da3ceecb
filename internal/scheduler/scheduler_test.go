package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/ringbuffer"
	"github.com/polyharvest/tiered-trader/internal/snapshot"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type recordingSink struct {
	mu    sync.Mutex
	count int
}

func (r *recordingSink) OnSnapshot(types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *recordingSink) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestTickAssemblesSnapshotsForEveryMarketInTier(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	now := time.Now()
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, Tier: 4, EndDate: now.Add(30 * time.Minute)})
	reg.Seed(&types.Market{ConditionID: "c2", Active: true, Tier: 0, EndDate: now.Add(100 * time.Hour)})

	buf := ringbuffer.New(10, time.Hour)
	buf.Push("c1", types.Trade{Timestamp: now, Price: 0.5, Size: 10, Side: types.SideBuy})

	asm := snapshot.NewAssembler(reg, nil, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	sink := &recordingSink{}
	sched := New(Config{EnabledTiers: []int{4}}, reg, asm, sink, zerolog.Nop())

	sched.tick(context.Background(), 4)

	if sink.Count() != 1 {
		t.Fatalf("expected exactly 1 snapshot from the tier-4 tick, got %d", sink.Count())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	buf := ringbuffer.New(10, time.Hour)
	asm := snapshot.NewAssembler(reg, nil, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	sched := New(Config{EnabledTiers: []int{4}}, reg, asm, &recordingSink{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
