package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/ringbuffer"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// mockGammaClient implements gamma.Client for testing.
type mockGammaClient struct {
	gamma.Client // embed to satisfy interface; panics if unused methods are called
	markets      []gamma.Market
	err          error
}

func (m *mockGammaClient) Markets(_ context.Context, _ *gamma.MarketsRequest) ([]gamma.Market, error) {
	return m.markets, m.err
}

func TestAssembleDropsWithoutUsablePrice(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, Tier: 0, EndDate: time.Now().Add(100 * time.Hour)})
	buf := ringbuffer.New(10, time.Hour)

	a := NewAssembler(reg, nil, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	_, ok := a.Assemble(context.Background(), "c1", time.Now())
	if ok {
		t.Fatal("expected snapshot dropped for market with no orderbook and no trades")
	}
}

func TestAssembleFallsBackToLastTradePrice(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, Tier: 0, EndDate: time.Now().Add(100 * time.Hour)})
	buf := ringbuffer.New(10, time.Hour)
	now := time.Now()
	buf.Push("c1", types.Trade{Timestamp: now.Add(-time.Minute), Price: 0.62, Size: 10, Side: types.SideBuy})

	a := NewAssembler(reg, nil, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	snap, ok := a.Assemble(context.Background(), "c1", now)
	if !ok {
		t.Fatal("expected snapshot built from last trade price")
	}
	if snap.Price != 0.62 {
		t.Fatalf("expected price 0.62, got %f", snap.Price)
	}
	if !snap.FlowOk {
		t.Fatal("expected flow fields populated from ring buffer")
	}
	if snap.OrderbookOk {
		t.Fatal("expected orderbook fields left unset for a tier-0 market")
	}
}

func TestAssemblePopulatesVolumeAndMomentumFromDiscovery(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, Tier: 3, EndDate: time.Now().Add(48 * time.Hour)})
	buf := ringbuffer.New(10, time.Hour)
	now := time.Now()
	buf.Push("c1", types.Trade{Timestamp: now.Add(-time.Minute), Price: 0.62, Size: 10, Side: types.SideBuy})

	endDate := now.Add(48 * time.Hour).Format(time.RFC3339)
	mock := &mockGammaClient{markets: []gamma.Market{{
		ConditionID: "c1", EndDate: endDate,
		Volume24hr:          "7500",
		OneDayPriceChange:   "0.01",
		OneWeekPriceChange:  "0.04",
		OneMonthPriceChange: "0.09",
		Volume1wk:           "30000",
	}}}
	disc := venue.NewDiscoveryClient(mock)

	a := NewAssembler(reg, disc, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	snap, ok := a.Assemble(context.Background(), "c1", now)
	if !ok {
		t.Fatal("expected snapshot built")
	}
	if !snap.VolumeOk || snap.Volume24h != 7500 {
		t.Fatalf("expected volume_24h 7500 with VolumeOk, got ok=%v val=%f", snap.VolumeOk, snap.Volume24h)
	}
	if !snap.MomentumOk || snap.PriceChange1w != 0.04 {
		t.Fatalf("expected price_change_1w 0.04 with MomentumOk, got ok=%v val=%f", snap.MomentumOk, snap.PriceChange1w)
	}
}

func TestAssembleNullsVolumeAndMomentumWhenDiscoveryFails(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	reg.Seed(&types.Market{ConditionID: "c1", Active: true, Tier: 3, EndDate: time.Now().Add(48 * time.Hour)})
	buf := ringbuffer.New(10, time.Hour)
	now := time.Now()
	buf.Push("c1", types.Trade{Timestamp: now.Add(-time.Minute), Price: 0.62, Size: 10, Side: types.SideBuy})

	mock := &mockGammaClient{err: context.DeadlineExceeded}
	disc := venue.NewDiscoveryClient(mock)

	a := NewAssembler(reg, disc, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	snap, ok := a.Assemble(context.Background(), "c1", now)
	if !ok {
		t.Fatal("expected snapshot built from ring buffer price despite discovery failure")
	}
	if snap.VolumeOk {
		t.Fatal("expected VolumeOk false when discovery refresh fails")
	}
	if snap.MomentumOk {
		t.Fatal("expected MomentumOk false when discovery refresh fails")
	}
}

func TestAssembleUnknownMarketFails(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	buf := ringbuffer.New(10, time.Hour)
	a := NewAssembler(reg, nil, nil, buf, [3]float64{500, 2500, 10000}, zerolog.Nop())
	_, ok := a.Assemble(context.Background(), "missing", time.Now())
	if ok {
		t.Fatal("expected assemble to fail for an untracked condition id")
	}
}
