package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

// noBiasParams configures the category base rates this instance trades on.
type noBiasParams struct {
	CategoryBaseRates map[string]float64 `json:"category_base_rates"`
	MinBaseRate       float64            `json:"min_base_rate"`
	MinLiquidity      float64            `json:"min_liquidity"`
	MinHoursToClose   float64            `json:"min_hours_to_close"`
	MaxHoursToClose   float64            `json:"max_hours_to_close"`
	SizeUSD           float64            `json:"size_usd"`
}

// noBias buys the NO token on markets whose category has an empirically
// observed base rate of NO-resolution above a configured floor.
type noBias struct {
	name   string
	params noBiasParams
}

func newNoBias(name string, raw json.RawMessage) (Strategy, error) {
	p := noBiasParams{MinBaseRate: 0.6, MinHoursToClose: 12, MaxHoursToClose: 24 * 30}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("no_bias params: %w", err)
	}
	return &noBias{name: name, params: p}, nil
}

func (s *noBias) Name() string    { return s.name }
func (s *noBias) Version() string { return "1" }

func (s *noBias) Filter(m scanner.MarketData) bool {
	rate, ok := s.params.CategoryBaseRates[m.Category]
	if !ok || rate < s.params.MinBaseRate {
		return false
	}
	if m.Liquidity < s.params.MinLiquidity {
		return false
	}
	if m.HoursToClose < s.params.MinHoursToClose || m.HoursToClose > s.params.MaxHoursToClose {
		return false
	}
	return true
}

func (s *noBias) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		rate := s.params.CategoryBaseRates[m.Category]
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      m.NoTokenID,
			Side:         types.SideBuy,
			Price:        1 - m.Price,
			Reason:       "category base rate favors NO",
			Edge:         rate - 0.5,
			Confidence:   rate,
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"category": m.Category, "base_rate": rate},
		})
	}
	return out
}

func (s *noBias) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}
