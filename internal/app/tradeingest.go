package app

import (
	"sync"
	"time"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/ringbuffer"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// tradeIngest implements wsmanager.EventHandler: it is the bridge that
// turns a real trade event into a ringbuffer.Buffer entry, whale-classified
// against the configured thresholds; a book_update event only refreshes the
// per-token touch used to annotate the next trade (best_bid/best_ask/mid at
// the moment of print).
type tradeIngest struct {
	registry   *market.Registry
	buffer     *ringbuffer.Buffer
	thresholds [3]float64

	mu    sync.Mutex
	touch map[string]touchState
}

type touchState struct {
	bestBid, bestAsk float64
	hasBook          bool
}

func newTradeIngest(registry *market.Registry, buffer *ringbuffer.Buffer, thresholds [3]float64) *tradeIngest {
	return &tradeIngest{
		registry:   registry,
		buffer:     buffer,
		thresholds: thresholds,
		touch:      make(map[string]touchState),
	}
}

// OnEvent implements wsmanager.EventHandler. wsmanager.drain has already
// stamped the connection's lastEventAt and recorded market activity on the
// registry by the time this runs; this handler pushes trades into the ring
// buffer and stamps each trade's own timestamp on the registry as its
// last-trade time.
func (t *tradeIngest) OnEvent(ev venue.StreamEvent) {
	switch ev.Kind {
	case "book_update":
		t.recordTouch(ev)
	case "trade":
		t.recordTrade(ev)
	}
}

func (t *tradeIngest) recordTouch(ev venue.StreamEvent) {
	if ev.Book == nil || len(ev.Book.Bids) == 0 || len(ev.Book.Asks) == 0 {
		return
	}
	bid, _ := ev.Book.Bids[0].Price.Float64()
	ask, _ := ev.Book.Asks[0].Price.Float64()

	t.mu.Lock()
	t.touch[ev.TokenID] = touchState{bestBid: bid, bestAsk: ask, hasBook: true}
	t.mu.Unlock()
}

func (t *tradeIngest) recordTrade(ev venue.StreamEvent) {
	if ev.Trade == nil {
		return
	}
	conditionID, ok := t.registry.ConditionForToken(ev.TokenID)
	if !ok {
		return
	}

	price, _ := ev.Trade.Price.Float64()
	size, _ := ev.Trade.Size.Float64()

	side := types.SideBuy
	if ev.Trade.Side == "sell" {
		side = types.SideSell
	}

	ts := ev.Trade.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	t.mu.Lock()
	touch, hasBook := t.touch[ev.TokenID]
	t.mu.Unlock()

	trade := types.Trade{
		ConditionID: conditionID,
		Timestamp:   ts,
		Price:       price,
		Size:        size,
		Side:        side,
		WhaleTier:   types.WhaleTier(size, t.thresholds),
		BestBid:     touch.bestBid,
		BestAsk:     touch.bestAsk,
		HasBook:     hasBook && touch.hasBook,
	}
	if trade.HasBook {
		trade.Mid = (trade.BestBid + trade.BestAsk) / 2
	}

	t.buffer.Push(conditionID, trade)
	t.registry.RecordTrade(conditionID, ts)
}
