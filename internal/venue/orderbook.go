package venue

import (
	"context"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
)

// OrderbookClient fetches a single token's book on demand — used by the
// snapshot assembler for tier-2-and-above markets, where a periodic REST
// pull is cheap enough not to need the WS book-update stream.
type OrderbookClient struct {
	clob  clob.Client
	guard *guard
}

func NewOrderbookClient(c clob.Client) *OrderbookClient {
	return &OrderbookClient{clob: c, guard: newGuard("orderbook", 5, 10, 2)}
}

func (c *OrderbookClient) GetOrderbook(ctx context.Context, tokenID string) (Orderbook, error) {
	v, err := c.guard.do(ctx, func(ctx context.Context) (any, error) {
		return c.clob.OrderBook(ctx, &clobtypes.BookRequest{TokenID: tokenID})
	})
	if err != nil {
		return Orderbook{}, err
	}
	book, _ := v.(clobtypes.OrderBook)
	return toOrderbook(tokenID, book), nil
}

func toOrderbook(tokenID string, book clobtypes.OrderBook) Orderbook {
	ob := Orderbook{TokenID: tokenID}
	for _, lvl := range book.Bids {
		ob.Bids = append(ob.Bids, toLevel(lvl.Price, lvl.Size))
	}
	for _, lvl := range book.Asks {
		ob.Asks = append(ob.Asks, toLevel(lvl.Price, lvl.Size))
	}
	return ob
}

func toLevel(priceStr, sizeStr string) Level {
	var lvl Level
	if p, ok := parseDecimal(priceStr); ok {
		lvl.Price = p
	}
	if s, ok := parseDecimal(sizeStr); ok {
		lvl.Size = s
	}
	return lvl
}

// GetMidpoint returns (bid+ask)/2 over the book's best levels. Returns
// ok=false if either side is empty.
func (c *OrderbookClient) GetMidpoint(ob Orderbook) (mid float64, ok bool) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0, false
	}
	bid, _ := ob.Bids[0].Price.Float64()
	ask, _ := ob.Asks[0].Price.Float64()
	return (bid + ask) / 2, true
}

// GetSpread returns max(0, ask-bid) over the book's best levels.
func (c *OrderbookClient) GetSpread(ob Orderbook) (spread float64, ok bool) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0, false
	}
	bid, _ := ob.Bids[0].Price.Float64()
	ask, _ := ob.Asks[0].Price.Float64()
	if ask < bid {
		return 0, true
	}
	return ask - bid, true
}
