package strategy

import (
	"testing"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

func TestWhaleFadeFiltersOnRecencyAndNetFlow(t *testing.T) {
	s, _ := newWhaleFade("wf", nil)
	wf := s.(*whaleFade)

	m := marketData("c1")
	m.Snapshot = types.Snapshot{
		WhaleOk:        true,
		WhaleCount1h:   2,
		WhaleNetFlow1h: 5000,
		TimeSinceWhale: 2 * time.Minute,
	}
	if !wf.Filter(m) {
		t.Fatal("expected recent large whale flow to pass")
	}

	stale := m
	stale.Snapshot.TimeSinceWhale = time.Hour
	if wf.Filter(stale) {
		t.Fatal("expected stale whale activity to be rejected")
	}

	small := m
	small.Snapshot.WhaleNetFlow1h = 10
	if wf.Filter(small) {
		t.Fatal("expected below-threshold net flow to be rejected")
	}
}

func TestWhaleFadeScanFadesNetBuyingWithNo(t *testing.T) {
	s, _ := newWhaleFade("wf", nil)
	wf := s.(*whaleFade)

	m := marketData("c1")
	m.Snapshot = types.Snapshot{
		WhaleOk:        true,
		WhaleCount1h:   1,
		WhaleNetFlow1h: 3000,
		TimeSinceWhale: time.Minute,
	}
	sigs := wf.Scan([]scanner.MarketData{m})
	if len(sigs) != 1 || sigs[0].TokenID != m.NoTokenID {
		t.Fatalf("expected NO signal fading net whale buying, got %+v", sigs)
	}
}

func TestWhaleFadeScanFadesNetSellingWithYes(t *testing.T) {
	s, _ := newWhaleFade("wf", nil)
	wf := s.(*whaleFade)

	m := marketData("c1")
	m.Snapshot = types.Snapshot{
		WhaleOk:        true,
		WhaleCount1h:   1,
		WhaleNetFlow1h: -3000,
		TimeSinceWhale: time.Minute,
	}
	sigs := wf.Scan([]scanner.MarketData{m})
	if len(sigs) != 1 || sigs[0].TokenID != m.YesTokenID {
		t.Fatalf("expected YES signal fading net whale selling, got %+v", sigs)
	}
}
