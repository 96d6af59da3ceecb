package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type whaleFadeParams struct {
	MaxTimeSinceWhale time.Duration `json:"max_time_since_whale"`
	MinNetFlow        float64       `json:"min_net_flow"`
	SizeUSD           float64       `json:"size_usd"`
}

// whaleFade fades the direction of the most recent whale trade on a market
// with recent whale activity, reading the ring-buffer-derived whale fields
// the snapshot assembler already computed.
type whaleFade struct {
	name   string
	params whaleFadeParams
}

func newWhaleFade(name string, raw json.RawMessage) (Strategy, error) {
	p := whaleFadeParams{MaxTimeSinceWhale: 15 * time.Minute, MinNetFlow: 1000}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("whale_fade params: %w", err)
	}
	return &whaleFade{name: name, params: p}, nil
}

func (s *whaleFade) Name() string    { return s.name }
func (s *whaleFade) Version() string { return "1" }

func (s *whaleFade) Filter(m scanner.MarketData) bool {
	snap := m.Snapshot
	if !snap.WhaleOk || snap.WhaleCount1h == 0 {
		return false
	}
	if snap.TimeSinceWhale > s.params.MaxTimeSinceWhale {
		return false
	}
	return absFloat(snap.WhaleNetFlow1h) >= s.params.MinNetFlow
}

func (s *whaleFade) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		snap := m.Snapshot
		// Whale net buying pushed price up: fade by buying NO, and the
		// mirror for net selling.
		token, tokenPrice := m.NoTokenID, 1-m.Price
		if snap.WhaleNetFlow1h < 0 {
			token, tokenPrice = m.YesTokenID, m.Price
		}
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      token,
			Side:         types.SideBuy,
			Price:        tokenPrice,
			Reason:       "fading recent whale net flow",
			Edge:         absFloat(snap.WhaleNetFlow1h) / (snap.Volume1h + 1),
			Confidence:   snap.WhaleBuyRatio1h,
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"whale_net_flow_1h": snap.WhaleNetFlow1h, "time_since_whale": snap.TimeSinceWhale},
		})
	}
	return out
}

func (s *whaleFade) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
