package strategy

import (
	"testing"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
)

func TestNewMarketFiltersOnTrackingAgeAndHoursToClose(t *testing.T) {
	s, _ := newNewMarket("nm", nil)
	nm := s.(*newMarket)

	m := marketData("c1")
	m.TrackingStartedAt = time.Now().Add(-time.Hour)
	m.HoursToClose = 100
	if !nm.Filter(m) {
		t.Fatal("expected freshly tracked long-horizon market to pass")
	}

	old := m
	old.TrackingStartedAt = time.Now().Add(-48 * time.Hour)
	if nm.Filter(old) {
		t.Fatal("expected stale tracking age to be rejected")
	}

	soon := m
	soon.HoursToClose = 5
	if nm.Filter(soon) {
		t.Fatal("expected short horizon to be rejected")
	}

	unset := m
	unset.TrackingStartedAt = time.Time{}
	if nm.Filter(unset) {
		t.Fatal("expected zero TrackingStartedAt to be rejected")
	}
}

func TestNewMarketScanBuysNoOnPrior(t *testing.T) {
	s, _ := newNewMarket("nm", nil)
	nm := s.(*newMarket)

	m := marketData("c1")
	m.TrackingStartedAt = time.Now().Add(-time.Hour)
	m.HoursToClose = 100

	sigs := nm.Scan([]scanner.MarketData{m})
	if len(sigs) != 1 || sigs[0].TokenID != m.NoTokenID {
		t.Fatalf("expected NO signal on new-market prior, got %+v", sigs)
	}
	if sigs[0].Confidence != nm.params.PriorNoRate {
		t.Fatalf("expected confidence to equal configured prior rate")
	}
}
