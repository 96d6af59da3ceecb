package wsmanager

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/types"
)

func TestDesiredTokensPrioritizesTierThenUrgency(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	now := time.Now()
	reg.Seed(&types.Market{ConditionID: "a", YesTokenID: "tok-a", Active: true, Tier: 2, EndDate: now.Add(10 * time.Hour)})
	reg.Seed(&types.Market{ConditionID: "b", YesTokenID: "tok-b", Active: true, Tier: 4, EndDate: now.Add(30 * time.Minute)})
	reg.Seed(&types.Market{ConditionID: "c", YesTokenID: "tok-c", Active: true, Tier: 4, EndDate: now.Add(45 * time.Minute)})
	reg.Seed(&types.Market{ConditionID: "d", YesTokenID: "", Active: true, Tier: 4, EndDate: now.Add(5 * time.Minute)})

	m := New(Config{Connections: 1, PerConnectionCap: 500, EnabledTiers: []int{2, 3, 4}}, reg, nil, nil, zerolog.Nop())
	got := m.desiredTokens(now)

	want := []string{"tok-b", "tok-c", "tok-a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDesiredTokensEvictsLowestPriorityWhenOversubscribed(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	now := time.Now()
	for i := 0; i < 5; i++ {
		reg.Seed(&types.Market{
			ConditionID: string(rune('a' + i)),
			YesTokenID:  string(rune('a' + i)),
			Active:      true,
			Tier:        4,
			EndDate:     now.Add(time.Duration(i+1) * time.Minute),
		})
	}

	m := New(Config{Connections: 1, PerConnectionCap: 2, EnabledTiers: []int{4}}, reg, nil, nil, zerolog.Nop())
	got := m.desiredTokens(now)

	if len(got) != 2 {
		t.Fatalf("expected capacity-bound 2 tokens, got %d: %v", len(got), got)
	}
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected the two most urgent tokens [a b], got %v", got)
	}
}

func TestTradeRatePerMinSamplesOncePerMinuteWindow(t *testing.T) {
	cs := &connState{}
	start := time.Now()

	if _, ok := cs.tradeRatePerMin(start); ok {
		t.Fatal("expected no sample on first call, only window init")
	}

	cs.tradeCount = 45
	if _, ok := cs.tradeRatePerMin(start.Add(30 * time.Second)); ok {
		t.Fatal("expected no sample before a full minute has elapsed")
	}

	rate, ok := cs.tradeRatePerMin(start.Add(90 * time.Second))
	if !ok {
		t.Fatal("expected a sample after a full minute elapsed")
	}
	want := 45.0 / 1.5 // 90s window
	if rate < want-0.01 || rate > want+0.01 {
		t.Fatalf("expected rate near %f, got %f", want, rate)
	}
	if cs.tradeCount != 0 {
		t.Fatalf("expected counter reset after sampling, got %d", cs.tradeCount)
	}
}

func TestCheckHealthFlagsConnectionBelowTradeRateFloor(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	m := New(Config{Connections: 1, PerConnectionCap: 10, MinTradeRate: 20}, reg, nil, nil, zerolog.Nop())

	start := time.Now()
	cs := &connState{tokens: make(map[string]bool)}
	cs.connected = true
	cs.lastEventAt = start
	cs.tradeCount = 10
	cs.windowStart = start

	now := start.Add(90 * time.Second)
	rate, sampled := cs.tradeRatePerMin(now)
	if !sampled {
		t.Fatal("expected a sample after a full minute elapsed")
	}
	starved := m.cfg.MinTradeRate > 0 && cs.connected && rate < m.cfg.MinTradeRate
	if !starved {
		t.Fatalf("expected connection flagged starved at rate %f below floor %f", rate, m.cfg.MinTradeRate)
	}
}

func TestCheckHealthIgnoresTradeRateWhenFloorUnset(t *testing.T) {
	reg := market.NewRegistry(nil, market.DiscoveryFilter{})
	m := New(Config{Connections: 1, PerConnectionCap: 10}, reg, nil, nil, zerolog.Nop())

	if m.cfg.MinTradeRate != 0 {
		t.Fatalf("expected zero-value MinTradeRate to disable the check, got %f", m.cfg.MinTradeRate)
	}
}

func TestSyncConnDiffsSubscribeAndUnsubscribe(t *testing.T) {
	cs := &connState{tokens: map[string]bool{"keep": true, "drop": true}}
	wantSet := map[string]bool{"keep": true, "new": true}

	var toAdd, toRemove []string
	for t := range wantSet {
		if !cs.tokens[t] {
			toAdd = append(toAdd, t)
		}
	}
	for t := range cs.tokens {
		if !wantSet[t] {
			toRemove = append(toRemove, t)
		}
	}
	if len(toAdd) != 1 || toAdd[0] != "new" {
		t.Fatalf("expected toAdd=[new], got %v", toAdd)
	}
	if len(toRemove) != 1 || toRemove[0] != "drop" {
		t.Fatalf("expected toRemove=[drop], got %v", toRemove)
	}
}
