package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type longshotParams struct {
	ProbThreshold   float64 `json:"prob_threshold"`
	MaxHoursToClose float64 `json:"max_hours_to_close"`
	SizeUSD         float64 `json:"size_usd"`
}

// longshot buys the favored side once its implied probability (price)
// clears a high threshold as the market nears close.
type longshot struct {
	name   string
	params longshotParams
}

func newLongshot(name string, raw json.RawMessage) (Strategy, error) {
	p := longshotParams{ProbThreshold: 0.92, MaxHoursToClose: 24}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("longshot params: %w", err)
	}
	return &longshot{name: name, params: p}, nil
}

func (s *longshot) Name() string    { return s.name }
func (s *longshot) Version() string { return "1" }

func (s *longshot) Filter(m scanner.MarketData) bool {
	if m.HoursToClose <= 0 || m.HoursToClose > s.params.MaxHoursToClose {
		return false
	}
	return m.Price >= s.params.ProbThreshold || m.Price <= 1-s.params.ProbThreshold
}

func (s *longshot) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		token, confidence := m.YesTokenID, m.Price
		if m.Price <= 1-s.params.ProbThreshold {
			token, confidence = m.NoTokenID, 1-m.Price
		}
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      token,
			Side:         types.SideBuy,
			Price:        confidence,
			Reason:       "favored side above probability threshold near close",
			Edge:         confidence - s.params.ProbThreshold,
			Confidence:   confidence,
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"hours_to_close": m.HoursToClose},
		})
	}
	return out
}

func (s *longshot) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}
