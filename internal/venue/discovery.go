package venue

import (
	"context"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
)

// DiscoveryClient lists active markets via the Gamma API, paginating until a
// short page terminates the stream.
type DiscoveryClient struct {
	gamma gamma.Client
	guard *guard
	page  int
}

func NewDiscoveryClient(g gamma.Client) *DiscoveryClient {
	return &DiscoveryClient{
		gamma: g,
		guard: newGuard("discovery", 2, 4, 3),
		page:  100,
	}
}

// ListActiveMarkets pages through Gamma's active-markets listing and returns
// every market regardless of downstream filtering — callers (market.Registry)
// apply the volume/liquidity/window filters.
func (c *DiscoveryClient) ListActiveMarkets(ctx context.Context) ([]MarketDescriptor, error) {
	active := true
	closed := false
	var out []MarketDescriptor
	offset := 0
	for {
		v, err := c.guard.do(ctx, func(ctx context.Context) (any, error) {
			return c.gamma.Markets(ctx, &gamma.MarketsRequest{
				Active: &active,
				Closed: &closed,
				Order:  "volume",
				Limit:  intPtr(c.page),
				Offset: intPtr(offset),
			})
		})
		if err != nil {
			return nil, err
		}
		markets, _ := v.([]gamma.Market)
		if len(markets) == 0 {
			break
		}
		for _, m := range markets {
			out = append(out, toDescriptor(m))
		}
		if len(markets) < c.page {
			break
		}
		offset += c.page
	}
	return out, nil
}

// ResolutionDescriptor is what the Discovery client returns per closed
// market, before market.Registry/reaper map it onto a terminal Outcome.
type ResolutionDescriptor struct {
	ConditionID string
	YesPrice    float64
	NoPrice     float64
	HasPrices   bool
}

// ListResolved pages through Gamma's closed-markets listing. Gamma's
// indicative outcome prices (from ParseOutcomePrices, populated once a
// market settles) are the resolution signal: near 1.0 for the winning
// side, near 0.0 for the loser, near 0.5/0.5 for an ambiguous/invalid
// settlement — the reaper maps these to a terminal Outcome.
func (c *DiscoveryClient) ListResolved(ctx context.Context) ([]ResolutionDescriptor, error) {
	closed := true
	var out []ResolutionDescriptor
	offset := 0
	for {
		v, err := c.guard.do(ctx, func(ctx context.Context) (any, error) {
			return c.gamma.Markets(ctx, &gamma.MarketsRequest{
				Closed: &closed,
				Order:  "closedTime",
				Limit:  intPtr(c.page),
				Offset: intPtr(offset),
			})
		})
		if err != nil {
			return nil, err
		}
		markets, _ := v.([]gamma.Market)
		if len(markets) == 0 {
			break
		}
		for _, m := range markets {
			out = append(out, toResolutionDescriptor(m))
		}
		if len(markets) < c.page {
			break
		}
		offset += c.page
	}
	return out, nil
}

func toResolutionDescriptor(m gamma.Market) ResolutionDescriptor {
	d := ResolutionDescriptor{ConditionID: m.ConditionID}
	prices := m.ParseOutcomePrices()
	if len(prices) >= 2 {
		d.YesPrice = prices[0]
		d.NoPrice = prices[1]
		d.HasPrices = true
	}
	return d
}

func toDescriptor(m gamma.Market) MarketDescriptor {
	d := MarketDescriptor{
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		Category:    m.Category,
		EnableBook:  m.EnableOrderBook,
	}
	if vol, ok := parseDecimal(m.Volume24hr); ok {
		f, _ := vol.Float64()
		d.Volume24h = f
	}
	if liq, ok := parseDecimal(m.Liquidity); ok {
		f, _ := liq.Float64()
		d.Liquidity = f
	}
	if end, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		d.EndDate = end
	}
	for _, tok := range m.ParsedTokens() {
		switch tok.Outcome {
		case "Yes", "YES", "yes":
			d.YesTokenID = tok.TokenID
		case "No", "NO", "no":
			d.NoTokenID = tok.TokenID
		}
	}

	d1, ok1 := parseDecimal(m.OneDayPriceChange)
	d7, ok7 := parseDecimal(m.OneWeekPriceChange)
	d30, ok30 := parseDecimal(m.OneMonthPriceChange)
	if ok1 && ok7 && ok30 {
		d.PriceChange1d, _ = d1.Float64()
		d.PriceChange1w, _ = d7.Float64()
		d.PriceChange1m, _ = d30.Float64()
		d.MomentumOk = true
	}
	if vol1w, ok := parseDecimal(m.Volume1wk); ok {
		d.Volume1w, _ = vol1w.Float64()
		d.Volume1wOk = true
	}
	return d
}

func intPtr(v int) *int { return &v }

// GetMarket fetches one market's current Gamma fields by condition id — the
// assembler's per-tick source for momentum and rolling-volume figures that
// ListActiveMarkets' bulk listing doesn't carry fresh enough to trust a tick
// later.
func (c *DiscoveryClient) GetMarket(ctx context.Context, conditionID string) (MarketDescriptor, bool, error) {
	v, err := c.guard.do(ctx, func(ctx context.Context) (any, error) {
		return c.gamma.Markets(ctx, &gamma.MarketsRequest{
			ConditionIDs: []string{conditionID},
			Limit:        intPtr(1),
		})
	})
	if err != nil {
		return MarketDescriptor{}, false, err
	}
	markets, _ := v.([]gamma.Market)
	if len(markets) == 0 {
		return MarketDescriptor{}, false, nil
	}
	return toDescriptor(markets[0]), true, nil
}
