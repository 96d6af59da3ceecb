package ringbuffer

import (
	"testing"
	"time"

	"github.com/polyharvest/tiered-trader/internal/types"
)

func TestPushEvictsOverCapacity(t *testing.T) {
	b := New(3, time.Hour)
	now := time.Now()
	for i := 0; i < 5; i++ {
		b.Push("m1", types.Trade{Timestamp: now.Add(time.Duration(i) * time.Second), Size: float64(i)})
	}
	got := b.Recent("m1", now.Add(10*time.Second), time.Hour)
	if len(got) != 3 {
		t.Fatalf("expected 3 trades retained, got %d", len(got))
	}
	if got[0].Size != 2 {
		t.Fatalf("expected oldest retained trade size 2, got %f", got[0].Size)
	}
}

func TestRecentWindowCorrectness(t *testing.T) {
	b := New(100, time.Hour)
	now := time.Now()
	times := []time.Duration{-50 * time.Minute, -20 * time.Minute, -5 * time.Minute, -1 * time.Minute}
	for _, d := range times {
		b.Push("m1", types.Trade{Timestamp: now.Add(d), Size: 1})
	}
	got := b.Recent("m1", now, 10*time.Minute)
	if len(got) != 2 {
		t.Fatalf("expected 2 trades within 10m window, got %d", len(got))
	}
}

func TestFlowLaws(t *testing.T) {
	trades := []types.Trade{
		{Side: types.SideBuy, Size: 10, Price: 0.5},
		{Side: types.SideSell, Size: 5, Price: 0.4},
		{Side: types.SideBuy, Size: 3, Price: 0.6},
	}
	m := Flow(trades)
	if m.BuyCount+m.SellCount != m.TradeCount {
		t.Fatal("buy_count + sell_count must equal trade_count")
	}
	if m.BuyVolume+m.SellVolume != m.Volume {
		t.Fatal("buy_volume + sell_volume must equal volume")
	}
}

func TestWhaleVolumeNeverExceedsTotal(t *testing.T) {
	trades := []types.Trade{
		{Timestamp: time.Now(), WhaleTier: 2, Size: 2500, Side: types.SideBuy},
		{Timestamp: time.Now(), WhaleTier: 0, Size: 10, Side: types.SideSell},
	}
	total := Flow(trades).Volume
	wm := Whale(trades, time.Now(), total)
	if wm.WhaleVolume > total {
		t.Fatalf("whale volume %f must not exceed total volume %f", wm.WhaleVolume, total)
	}
}

func TestWhaleScenarioS2(t *testing.T) {
	now := time.Now()
	trades := []types.Trade{
		{Timestamp: now.Add(-30 * time.Minute), Size: 2500, Side: types.SideBuy, WhaleTier: 2},
		{Timestamp: now.Add(-10 * time.Minute), Size: 400, Side: types.SideSell, WhaleTier: 0},
		{Timestamp: now.Add(-5 * time.Minute), Size: 12000, Side: types.SideSell, WhaleTier: 3},
	}
	total := Flow(trades).Volume
	wm := Whale(trades, now, total)
	if wm.WhaleCount != 2 {
		t.Fatalf("expected whale_count=2, got %d", wm.WhaleCount)
	}
	if wm.WhaleVolume != 14500 {
		t.Fatalf("expected whale_volume=14500, got %f", wm.WhaleVolume)
	}
	if wm.WhaleNetFlow != -9500 {
		t.Fatalf("expected whale_net_flow=-9500, got %f", wm.WhaleNetFlow)
	}
	if wm.TimeSinceWhale != 5*time.Minute {
		t.Fatalf("expected time_since_whale=5m, got %s", wm.TimeSinceWhale)
	}
}
