package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type newMarketParams struct {
	MaxTrackingAge  time.Duration `json:"max_tracking_age"`
	MinHoursToClose float64       `json:"min_hours_to_close"`
	PriorNoRate     float64       `json:"prior_no_rate"`
	SizeUSD         float64       `json:"size_usd"`
}

// newMarket buys NO on markets the registry only just started tracking and
// that still have a long way to close, on the statistical prior that most
// freshly listed long-horizon markets resolve NO.
type newMarket struct {
	name   string
	params newMarketParams
}

func newNewMarket(name string, raw json.RawMessage) (Strategy, error) {
	p := newMarketParams{MaxTrackingAge: 24 * time.Hour, MinHoursToClose: 48, PriorNoRate: 0.65}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("new_market params: %w", err)
	}
	return &newMarket{name: name, params: p}, nil
}

func (s *newMarket) Name() string    { return s.name }
func (s *newMarket) Version() string { return "1" }

func (s *newMarket) Filter(m scanner.MarketData) bool {
	if m.TrackingStartedAt.IsZero() {
		return false
	}
	if time.Since(m.TrackingStartedAt) > s.params.MaxTrackingAge {
		return false
	}
	return m.HoursToClose >= s.params.MinHoursToClose
}

func (s *newMarket) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      m.NoTokenID,
			Side:         types.SideBuy,
			Price:        1 - m.Price,
			Reason:       "new long-horizon market, prior favors NO",
			Edge:         s.params.PriorNoRate - 0.5,
			Confidence:   s.params.PriorNoRate,
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"tracking_age": time.Since(m.TrackingStartedAt), "hours_to_close": m.HoursToClose},
		})
	}
	return out
}

func (s *newMarket) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}
