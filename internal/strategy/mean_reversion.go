package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

type meanReversionParams struct {
	WindowSize  int     `json:"window_size"`
	KStdDev     float64 `json:"k_stddev"`
	MinWindow   int     `json:"min_window"`
	SizeUSD     float64 `json:"size_usd"`
}

// meanReversion needs a price-history window; it signals when the current
// price deviates from the window mean by more than k standard deviations,
// over a fixed-size rolling sample with mean/variance computed on demand.
type meanReversion struct {
	name   string
	params meanReversionParams
}

func newMeanReversion(name string, raw json.RawMessage) (Strategy, error) {
	p := meanReversionParams{WindowSize: 50, KStdDev: 2, MinWindow: 10}
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, fmt.Errorf("mean_reversion params: %w", err)
	}
	return &meanReversion{name: name, params: p}, nil
}

func (s *meanReversion) Name() string    { return s.name }
func (s *meanReversion) Version() string { return "1" }

func (s *meanReversion) Filter(m scanner.MarketData) bool {
	return len(m.PriceHistory) >= s.params.MinWindow
}

func (s *meanReversion) Scan(markets []scanner.MarketData) []types.Signal {
	var out []types.Signal
	for _, m := range markets {
		if !s.Filter(m) {
			continue
		}
		window := m.PriceHistory
		if len(window) > s.params.WindowSize {
			window = window[len(window)-s.params.WindowSize:]
		}
		mean, stdev := meanAndStddev(window)
		if stdev == 0 {
			continue
		}
		z := (m.Price - mean) / stdev
		if math.Abs(z) < s.params.KStdDev {
			continue
		}
		// Price ran above its window mean: fade back toward it by buying
		// NO; below the mean, buy YES.
		token, tokenPrice := m.NoTokenID, 1-m.Price
		if z < 0 {
			token, tokenPrice = m.YesTokenID, m.Price
		}
		out = append(out, types.Signal{
			Strategy:     s.name,
			Version:      s.Version(),
			ConditionID:  m.ConditionID,
			TokenID:      token,
			Side:         types.SideBuy,
			Price:        tokenPrice,
			Reason:       "price deviated from window mean beyond k stddev",
			Edge:         math.Abs(z) - s.params.KStdDev,
			Confidence:   clamp01(math.Abs(z) / (s.params.KStdDev * 2)),
			SuggestedUSD: s.params.SizeUSD,
			Timestamp:    time.Now(),
			Metadata:     map[string]any{"z_score": z, "window_mean": mean, "window_stddev": stdev},
		})
	}
	return out
}

func (s *meanReversion) ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool) {
	return types.Signal{}, false
}

func meanAndStddev(points []scanner.PricePoint) (mean, stddev float64) {
	if len(points) == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	mean = sum / float64(len(points))

	var variance float64
	for _, p := range points {
		d := p.Price - mean
		variance += d * d
	}
	variance /= float64(len(points))
	return mean, math.Sqrt(variance)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
