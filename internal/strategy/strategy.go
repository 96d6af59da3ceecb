// Package strategy holds the Strategy interface and the typed strategy
// implementations configured through the strategies declarative document.
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/types"
)

// Strategy is pure with respect to the MarketData views passed in — it
// never reads storage directly.
type Strategy interface {
	Name() string
	Version() string
	Filter(m scanner.MarketData) bool
	Scan(markets []scanner.MarketData) []types.Signal
	ShouldExit(pos types.Position, m scanner.MarketData) (types.Signal, bool)
}

// Factory builds a Strategy instance from its configured params.
type Factory func(name string, params json.RawMessage) (Strategy, error)

var registry = map[string]Factory{
	"no_bias":        newNoBias,
	"longshot":       newLongshot,
	"mean_reversion": newMeanReversion,
	"whale_fade":     newWhaleFade,
	"flow_fade":      newFlowFade,
	"new_market":     newNewMarket,
}

// Build constructs a Strategy instance of typeName from its configured
// params, erroring on an unknown type.
func Build(typeName, instanceName string, params json.RawMessage) (Strategy, error) {
	factory, ok := registry[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown strategy type %q", typeName)
	}
	return factory(instanceName, params)
}

// WantsPriceHistory reports whether any instance of typeName requires a
// scan call built with scanner.WithPriceHistory — only mean_reversion does.
func WantsPriceHistory(typeName string) bool {
	return typeName == "mean_reversion"
}

func unmarshalParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, v)
}
