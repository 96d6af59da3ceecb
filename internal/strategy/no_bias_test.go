package strategy

import (
	"math"
	"testing"

	"github.com/polyharvest/tiered-trader/internal/scanner"
)

func marketData(conditionID string) scanner.MarketData {
	return scanner.MarketData{
		ConditionID: conditionID,
		YesTokenID:  conditionID + "-yes",
		NoTokenID:   conditionID + "-no",
	}
}

func TestNoBiasFiltersOnCategoryRateLiquidityAndWindow(t *testing.T) {
	s, err := newNoBias("nb", nil)
	if err != nil {
		t.Fatal(err)
	}
	nb := s.(*noBias)
	nb.params.CategoryBaseRates = map[string]float64{"politics": 0.7}

	m := marketData("c1")
	m.Category = "politics"
	m.Liquidity = 10000
	m.HoursToClose = 100

	if !nb.Filter(m) {
		t.Fatal("expected market to pass filter")
	}

	low := m
	low.Category = "sports"
	if nb.Filter(low) {
		t.Fatal("expected unconfigured category to be rejected")
	}

	tooSoon := m
	tooSoon.HoursToClose = 1
	if nb.Filter(tooSoon) {
		t.Fatal("expected under-window market to be rejected")
	}
}

func TestNoBiasScanEmitsBuyNoWithBaseRateEdge(t *testing.T) {
	s, _ := newNoBias("nb", nil)
	nb := s.(*noBias)
	nb.params.CategoryBaseRates = map[string]float64{"politics": 0.7}

	m := marketData("c1")
	m.Category = "politics"
	m.Liquidity = 10000
	m.HoursToClose = 100

	sigs := nb.Scan([]scanner.MarketData{m})
	if len(sigs) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(sigs))
	}
	if sigs[0].TokenID != m.NoTokenID {
		t.Fatalf("expected NO token, got %s", sigs[0].TokenID)
	}
	if math.Abs(sigs[0].Edge-0.2) > 1e-9 {
		t.Fatalf("expected edge 0.2, got %f", sigs[0].Edge)
	}
}
