package strategy

import (
	"testing"

	"github.com/polyharvest/tiered-trader/internal/scanner"
)

func TestLongshotFiltersOnThresholdAndWindow(t *testing.T) {
	s, _ := newLongshot("ls", nil)
	ls := s.(*longshot)

	m := marketData("c1")
	m.HoursToClose = 12
	m.Price = 0.95

	if !ls.Filter(m) {
		t.Fatal("expected high-confidence YES to pass")
	}

	no := m
	no.Price = 0.04
	if !ls.Filter(no) {
		t.Fatal("expected high-confidence NO to pass")
	}

	mid := m
	mid.Price = 0.5
	if ls.Filter(mid) {
		t.Fatal("expected mid-probability market to be rejected")
	}

	expired := m
	expired.HoursToClose = 0
	if ls.Filter(expired) {
		t.Fatal("expected zero hours-to-close to be rejected")
	}
}

func TestLongshotScanPicksFavoredSide(t *testing.T) {
	s, _ := newLongshot("ls", nil)
	ls := s.(*longshot)

	yes := marketData("c1")
	yes.HoursToClose = 12
	yes.Price = 0.95
	sigs := ls.Scan([]scanner.MarketData{yes})
	if len(sigs) != 1 || sigs[0].TokenID != yes.YesTokenID {
		t.Fatalf("expected YES signal, got %+v", sigs)
	}

	no := marketData("c2")
	no.HoursToClose = 12
	no.Price = 0.03
	sigs = ls.Scan([]scanner.MarketData{no})
	if len(sigs) != 1 || sigs[0].TokenID != no.NoTokenID {
		t.Fatalf("expected NO signal, got %+v", sigs)
	}
	if sigs[0].Confidence != 0.97 {
		t.Fatalf("expected confidence 0.97, got %f", sigs[0].Confidence)
	}
}
