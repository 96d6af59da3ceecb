// Package snapshot builds the per-market Snapshot record each tier tick,
// fusing the venue orderbook, the trade ring buffer, and the market
// registry's own metadata.
package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/ringbuffer"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

const whaleFlowWindow = time.Hour

// Assembler builds a Snapshot for one market at a time, pulling the
// orderbook only for tiers that enable it and refreshing momentum/volume
// fields from Discovery every tick regardless of tier.
type Assembler struct {
	registry  *market.Registry
	discovery *venue.DiscoveryClient
	orderbook *venue.OrderbookClient
	trades    *ringbuffer.Buffer
	whale     [3]float64
	log       zerolog.Logger
}

func NewAssembler(reg *market.Registry, disc *venue.DiscoveryClient, ob *venue.OrderbookClient, trades *ringbuffer.Buffer, whaleThresholds [3]float64, log zerolog.Logger) *Assembler {
	return &Assembler{registry: reg, discovery: disc, orderbook: ob, trades: trades, whale: whaleThresholds, log: log}
}

// Assemble builds one Snapshot for conditionID at now. Any subsection
// failure (orderbook unreachable, no trades yet) nulls that subsection's
// fields and logs rather than failing the whole snapshot. A snapshot
// missing a usable price is dropped (ok=false) since nothing useful can be
// derived from it.
func (a *Assembler) Assemble(ctx context.Context, conditionID string, now time.Time) (types.Snapshot, bool) {
	m, ok := a.registry.Get(conditionID)
	if !ok {
		return types.Snapshot{}, false
	}

	snap := types.Snapshot{
		ConditionID: conditionID,
		Timestamp:   now,
	}
	snap.HoursToClose, snap.DayOfWeek, snap.HourOfDay = types.Context(now, m.EndDate)
	snap.Liquidity = m.InitialLiquidity
	snap.VolumeTotal = m.InitialVolume

	if a.discovery != nil {
		a.fillDiscovery(ctx, &snap, conditionID)
	}
	if types.OrderbookEnabled(m.Tier) && a.orderbook != nil {
		a.fillOrderbook(ctx, &snap, m)
	}
	a.fillTradeFlow(&snap, conditionID, now)

	if !snap.PriceOk {
		recent := a.trades.Recent(conditionID, now, whaleFlowWindow)
		if len(recent) > 0 {
			last := recent[len(recent)-1]
			snap.Price = last.Price
			snap.LastTradePrice = last.Price
			snap.PriceOk = true
		}
	}
	if !snap.PriceOk {
		a.log.Warn().Str("condition_id", conditionID).Msg("snapshot dropped: no usable price")
		return types.Snapshot{}, false
	}

	a.registry.RecordSnapshot(conditionID, now)
	return snap, true
}

// fillDiscovery refreshes momentum and rolling-volume fields from Gamma.
// A failed or empty lookup leaves MomentumOk/VolumeOk false rather than
// masquerading as a zero reading.
func (a *Assembler) fillDiscovery(ctx context.Context, snap *types.Snapshot, conditionID string) {
	d, found, err := a.discovery.GetMarket(ctx, conditionID)
	if err != nil {
		a.log.Warn().Err(err).Str("condition_id", conditionID).Msg("discovery refresh failed, nulling momentum/volume fields")
		return
	}
	if !found {
		return
	}

	snap.Volume24h = d.Volume24h
	snap.VolumeOk = true
	if d.Volume1wOk {
		snap.Volume1w = d.Volume1w
	}
	if d.MomentumOk {
		snap.PriceChange1d = d.PriceChange1d
		snap.PriceChange1w = d.PriceChange1w
		snap.PriceChange1m = d.PriceChange1m
		snap.MomentumOk = true
	}
}

func (a *Assembler) fillOrderbook(ctx context.Context, snap *types.Snapshot, m types.Market) {
	book, err := a.orderbook.GetOrderbook(ctx, m.YesTokenID)
	if err != nil {
		a.log.Warn().Err(err).Str("condition_id", m.ConditionID).Msg("orderbook fetch failed, nulling book fields")
		return
	}

	bids := toLevels(book.Bids)
	asks := toLevels(book.Asks)

	if mid, ok := a.orderbook.GetMidpoint(book); ok {
		snap.Price = mid
		snap.PriceOk = true
	}
	if spread, ok := a.orderbook.GetSpread(book); ok {
		snap.Spread = spread
	}
	if len(bids) > 0 {
		snap.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		snap.BestAsk = asks[0].Price
	}
	snap.Spread = types.ComputeSpread(snap.BestBid, snap.BestAsk)

	snap.BidDepth5 = types.DepthAt(bids, 5)
	snap.BidDepth10 = types.DepthAt(bids, 10)
	snap.BidDepth20 = types.DepthAt(bids, 20)
	snap.BidDepth50 = types.DepthAt(bids, 50)
	snap.AskDepth5 = types.DepthAt(asks, 5)
	snap.AskDepth10 = types.DepthAt(asks, 10)
	snap.AskDepth20 = types.DepthAt(asks, 20)
	snap.AskDepth50 = types.DepthAt(asks, 50)
	snap.BidLevels = len(bids)
	snap.AskLevels = len(asks)
	snap.BookImbalance = types.BookImbalance(snap.BidDepth10, snap.AskDepth10)
	snap.BidWallPrice, snap.BidWallSize = types.Wall(bids)
	snap.AskWallPrice, snap.AskWallSize = types.Wall(asks)
	snap.OrderbookOk = true
}

func toLevels(lv []venue.Level) []types.OrderbookLevel {
	out := make([]types.OrderbookLevel, 0, len(lv))
	for _, l := range lv {
		p, _ := l.Price.Float64()
		s, _ := l.Size.Float64()
		out = append(out, types.OrderbookLevel{Price: p, Size: s})
	}
	return out
}

func (a *Assembler) fillTradeFlow(snap *types.Snapshot, conditionID string, now time.Time) {
	recent := a.trades.Recent(conditionID, now, whaleFlowWindow)
	if len(recent) == 0 {
		return
	}

	flow := ringbuffer.Flow(recent)
	snap.TradeCount1h = flow.TradeCount
	snap.BuyCount1h = flow.BuyCount
	snap.SellCount1h = flow.SellCount
	snap.Volume1h = flow.Volume
	snap.BuyVolume1h = flow.BuyVolume
	snap.SellVolume1h = flow.SellVolume
	snap.AvgSize1h = flow.AvgSize
	snap.MaxSize1h = flow.MaxSize
	snap.Vwap1h = flow.Vwap
	snap.FlowOk = true

	whale := ringbuffer.Whale(recent, now, flow.Volume)
	snap.WhaleCount1h = whale.WhaleCount
	snap.WhaleVolume1h = whale.WhaleVolume
	snap.WhaleBuyVolume1h = whale.WhaleBuyVolume
	snap.WhaleSellVolume1h = whale.WhaleSellVolume
	snap.WhaleNetFlow1h = whale.WhaleNetFlow
	snap.WhaleBuyRatio1h = whale.WhaleBuyRatio
	snap.TimeSinceWhale = whale.TimeSinceWhale
	snap.PctVolumeFromWhales = whale.PctVolumeFromWhales
	snap.WhaleOk = true
}
