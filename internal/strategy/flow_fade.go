package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type flowFadeParams struct {
	MinVolume1h      float64 `json:"min_volume_1h"`
	MinImbalance     float64 `json:"min_imbalance"`
	MinBuyRatioSkew  float64 `json:"min_buy_ratio_skew"`
	SizeUSD          float64 `json:"size_usd"`
}

// flowFade fades a short-window volume spike skewed heavily to one side, or
// an extreme orderbook imbalance, on the view that flow this lopsided tends
// to mean-revert rather than persist.
type flowFade struct {
	name   string
	params flowFadeParams
}

func newFlowFade(name string, raw json.RawMessage) (Strategy, error) {
	p := flowFadeParams{MinVolume1h: 2000, MinImbalance: 0.4, MinBuyRatioSkew: 0.2}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("flow_fade params: %w", err)
	}
	return &flowFade{name: name, params: p}, nil
}

func (s *flowFade) Name() string    { return s.name }
func (s *flowFade) Version() string { return "1" }

func (s *flowFade) buyRatio(snap types.Snapshot) (ratio float64, ok bool) {
	if snap.Volume1h == 0 {
		return 0, false
	}
	return snap.BuyVolume1h / snap.Volume1h, true
}

func (s *flowFade) Filter(m scanner.MarketData) bool {
	snap := m.Snapshot
	if !snap.FlowOk || snap.Volume1h < s.params.MinVolume1h {
		return false
	}
	if snap.OrderbookOk && absFloat(snap.BookImbalance) >= s.params.MinImbalance {
		return true
	}
	ratio, ok := s.buyRatio(snap)
	return ok && absFloat(ratio-0.5) >= s.params.MinBuyRatioSkew
}

func (s *flowFade) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		snap := m.Snapshot
		ratio, hasRatio := s.buyRatio(snap)
		// Flow skewed toward buying pushed the price up: fade with NO.
		// An imbalanced book toward bids reads the same way.
		buySkewed := (hasRatio && ratio > 0.5) || (snap.OrderbookOk && snap.BookImbalance > 0)
		token, tokenPrice := m.NoTokenID, 1-m.Price
		if !buySkewed {
			token, tokenPrice = m.YesTokenID, m.Price
		}
		edge := absFloat(snap.BookImbalance)
		if hasRatio && absFloat(ratio-0.5) > edge {
			edge = absFloat(ratio - 0.5)
		}
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      token,
			Side:         types.SideBuy,
			Price:        tokenPrice,
			Reason:       "fading lopsided short-window flow",
			Edge:         edge,
			Confidence:   clamp01(edge * 2),
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"volume_1h": snap.Volume1h, "book_imbalance": snap.BookImbalance, "buy_ratio_1h": ratio},
		})
	}
	return out
}

func (s *flowFade) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}
