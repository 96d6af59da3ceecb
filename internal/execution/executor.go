// Package execution turns an approved, sized Order into a Fill against a
// venue orderbook — in paper mode by simulating the fill locally (fee/
// slippage model, one paper balance and a per-token inventory shared by
// every strategy), in live mode by placing the real order. Order-type-aware fill mechanics
// drive types.Position directly.
package execution

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// Executor turns an approved Order into a Fill against the given book.
type Executor interface {
	Execute(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error)
}

// Config bounds the paper fill model and the limit/spread timing model.
type Config struct {
	FeeBps               float64
	SlippageBps          float64 // base_slippage, in bps
	SlippageDepthK       float64 // k: weight on size/depth_at_best
	MaxSlippageBps       float64 // ceiling; 0 means 3x base_slippage
	AllowShort           bool
	LimitOffsetBps       float64
	SpreadTimeoutSeconds int
}

func topOfBook(book venue.Orderbook) (bestBid, bestAsk float64, ok bool) {
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return 0, 0, false
	}
	bid, _ := book.Bids[0].Price.Float64()
	ask, _ := book.Asks[0].Price.Float64()
	return bid, ask, true
}

// depthAtBest returns the USD size resting at the side of the book a market
// order of the given side would take liquidity from: the ask depth for a
// buy, the bid depth for a sell.
func depthAtBest(book venue.Orderbook, side types.Side) (usd float64, ok bool) {
	levels := book.Asks
	if side == types.SideSell {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 0, false
	}
	price, _ := levels[0].Price.Float64()
	size, _ := levels[0].Size.Float64()
	return price * size, true
}

// applySlippage models paper-fill slippage as a base rate plus a term that
// grows with how much of the best level's depth the order consumes:
// base_slippage + k * (size / depth_at_best), clamped to a ceiling.
func applySlippage(price float64, side types.Side, sizeUSD, depthUSD float64, cfg Config) float64 {
	bps := cfg.SlippageBps
	if depthUSD > 0 {
		bps += cfg.SlippageDepthK * (sizeUSD / depthUSD) * 10000
	}
	ceiling := cfg.MaxSlippageBps
	if ceiling <= 0 {
		ceiling = cfg.SlippageBps * 3
	}
	if ceiling > 0 && bps > ceiling {
		bps = ceiling
	}
	if bps <= 0 {
		return price
	}
	mult := bps / 10000
	if side == types.SideBuy {
		return price * (1 + mult)
	}
	return price * (1 - mult)
}

// fillProbability models a resting limit order's chance of filling before
// its timeout as a function of how far its price sits from the touch:
// right at the touch it's near-certain, and it decays exponentially as the
// offset widens — a thin spread closes fast, a wide one rarely does.
func fillProbability(offsetBps float64) float64 {
	if offsetBps <= 0 {
		return 0.98
	}
	return 0.98 * math.Exp(-offsetBps/50)
}

// ErrOrderExpired is returned when a limit or spread order's timeout
// elapses without a fill.
var ErrOrderExpired = fmt.Errorf("order expired unfilled")

// PaperExecutor simulates fills against a local balance and per-token
// inventory, emitting types.Fill and supporting limit/spread order types
// alongside market orders.
type PaperExecutor struct {
	mu sync.Mutex

	cfg Config

	balanceUSD float64
	inventory  map[string]float64
	sequence   int64
	rng        randSource
	sleep      func(d time.Duration)
}

// randSource is the minimal surface PaperExecutor needs from math/rand —
// narrowed to a single method so tests can inject a fixed draw instead of
// a seeded generator.
type randSource interface {
	Float64() float64
}

func NewPaperExecutor(cfg Config, initialBalanceUSD float64) *PaperExecutor {
	if initialBalanceUSD <= 0 {
		initialBalanceUSD = 1000
	}
	return &PaperExecutor{
		cfg:        cfg,
		balanceUSD: initialBalanceUSD,
		inventory:  make(map[string]float64),
		rng:        rand.New(rand.NewSource(1)),
		sleep:      time.Sleep,
	}
}

func (p *PaperExecutor) BalanceUSD() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balanceUSD
}

func (p *PaperExecutor) Execute(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error) {
	switch order.Type {
	case "limit":
		return p.executeLimit(ctx, order, book)
	case "spread":
		return p.executeSpread(ctx, order, book)
	default:
		return p.executeMarket(order, book)
	}
}

func (p *PaperExecutor) executeMarket(order types.Order, book venue.Orderbook) (types.Fill, error) {
	bid, ask, ok := topOfBook(book)
	if !ok {
		return types.Fill{}, fmt.Errorf("empty orderbook for %s", order.TokenID)
	}
	price := ask
	if order.Side == types.SideSell {
		price = bid
	}
	depthUSD, _ := depthAtBest(book, order.Side)
	price = applySlippage(price, order.Side, order.SizeUSD, depthUSD, p.cfg)
	return p.settle(order, price)
}

// executeLimit posts at order.Price if it already crosses the book
// (marketable), otherwise waits up to the configured timeout, resolving
// probabilistically based on distance from the touch.
func (p *PaperExecutor) executeLimit(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error) {
	bid, ask, ok := topOfBook(book)
	if !ok {
		return types.Fill{}, fmt.Errorf("empty orderbook for %s", order.TokenID)
	}

	marketable := (order.Side == types.SideBuy && ask <= order.Price) ||
		(order.Side == types.SideSell && bid >= order.Price)
	if marketable {
		return p.settle(order, order.Price)
	}

	touch := ask
	if order.Side == types.SideSell {
		touch = bid
	}
	offsetBps := math.Abs(order.Price-touch) / touch * 10000
	return p.waitAndResolve(ctx, order, offsetBps)
}

// executeSpread posts passively at the touch first; if that isn't
// immediately marketable it waits out the spread timeout and, on no fill,
// escalates to a market order rather than expiring unfilled.
func (p *PaperExecutor) executeSpread(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error) {
	bid, ask, ok := topOfBook(book)
	if !ok {
		return types.Fill{}, fmt.Errorf("empty orderbook for %s", order.TokenID)
	}
	passivePrice := bid
	if order.Side == types.SideSell {
		passivePrice = ask
	}
	passive := order
	passive.Price = passivePrice
	fill, err := p.waitAndResolve(ctx, passive, 0)
	if err == nil {
		fill.SlippageVsSignal = slippageVsSignal(order.Side, order.Price, fill.Price)
		return fill, nil
	}
	if err != ErrOrderExpired {
		return types.Fill{}, err
	}
	return p.executeMarket(order, book)
}

func (p *PaperExecutor) waitAndResolve(ctx context.Context, order types.Order, offsetBps float64) (types.Fill, error) {
	timeout := time.Duration(p.cfg.SpreadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-ctx.Done():
		return types.Fill{}, ctx.Err()
	default:
	}
	p.sleep(timeout)

	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	if roll > fillProbability(offsetBps) {
		return types.Fill{}, ErrOrderExpired
	}
	return p.settle(order, order.Price)
}

func (p *PaperExecutor) settle(order types.Order, price float64) (types.Fill, error) {
	if order.SizeUSD <= 0 {
		return types.Fill{}, fmt.Errorf("order size must be positive")
	}
	if price <= 0 {
		return types.Fill{}, fmt.Errorf("invalid execution price")
	}

	fee := order.SizeUSD * p.cfg.FeeBps / 10000
	shares := order.SizeUSD / price

	p.mu.Lock()
	defer p.mu.Unlock()

	switch order.Side {
	case types.SideBuy:
		if order.SizeUSD+fee > p.balanceUSD {
			return types.Fill{}, fmt.Errorf("insufficient paper balance: need %.4f have %.4f", order.SizeUSD+fee, p.balanceUSD)
		}
	case types.SideSell:
		if !p.cfg.AllowShort {
			current := p.inventory[order.TokenID]
			if current+1e-9 < shares {
				return types.Fill{}, fmt.Errorf("insufficient paper inventory: need %.8f have %.8f", shares, current)
			}
		}
	default:
		return types.Fill{}, fmt.Errorf("unsupported side: %s", order.Side)
	}

	p.sequence++
	orderID := fmt.Sprintf("paper-order-%06d", p.sequence)
	p.sequence++
	tradeID := fmt.Sprintf("paper-trade-%06d", p.sequence)

	if order.Side == types.SideBuy {
		p.balanceUSD -= order.SizeUSD + fee
		p.inventory[order.TokenID] += shares
	} else {
		p.balanceUSD += order.SizeUSD - fee
		p.inventory[order.TokenID] -= shares
		if p.inventory[order.TokenID] > -1e-9 && p.inventory[order.TokenID] < 1e-9 {
			delete(p.inventory, order.TokenID)
		}
	}

	return types.Fill{
		OrderID:          orderID,
		TradeID:          tradeID,
		ConditionID:      order.ConditionID,
		TokenID:          order.TokenID,
		Side:             order.Side,
		Price:            price,
		Shares:           shares,
		CostUSD:          order.SizeUSD,
		FeeUSD:           fee,
		SlippageVsSignal: slippageVsSignal(order.Side, order.Price, price),
		Timestamp:        time.Now(),
	}, nil
}

// slippageVsSignal is the fractional cost of executing at price instead of
// the signal's reference price: positive means the fill was worse for the
// order's side than the signal anticipated.
func slippageVsSignal(side types.Side, signalPrice, fillPrice float64) float64 {
	if signalPrice <= 0 {
		return 0
	}
	if side == types.SideSell {
		return (signalPrice - fillPrice) / signalPrice
	}
	return (fillPrice - signalPrice) / signalPrice
}
