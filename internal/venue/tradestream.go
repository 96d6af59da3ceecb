package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/ws"
	gorillaws "github.com/gorilla/websocket"
)

// TradeStreamClient subscribes to a set of token IDs on the SDK's market WS
// channel and forwards its orderbook events as a single StreamEvent
// channel, so the WS Subscription Manager doesn't need to know the SDK's
// event types. Only the orderbook channel is subscribed: every event it
// emits has Kind "book_update", and no "trade" or "price_change" events
// are produced.
type TradeStreamClient struct {
	ws ws.Client

	mu      sync.Mutex
	dialer  *gorillaws.Dialer
	guard   *guard
	cancels map[string]context.CancelFunc
}

func NewTradeStreamClient(c ws.Client) *TradeStreamClient {
	return &TradeStreamClient{
		ws:      c,
		dialer:  gorillaws.DefaultDialer,
		guard:   newGuard("tradestream", 10, 20, 1),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Subscribe opens (or extends) the market channel for tokenIDs and returns a
// channel of book_update events, each tagged with its token ID so a single
// consumer channel covers an entire connection's token set. Trade prints are
// not subscribed, so the channel carries no trade events.
func (c *TradeStreamClient) Subscribe(ctx context.Context, tokenIDs []string) (<-chan StreamEvent, error) {
	v, err := c.guard.do(ctx, func(ctx context.Context) (any, error) {
		return c.ws.SubscribeOrderbook(ctx, tokenIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe orderbook: %w", err)
	}
	bookCh, _ := v.(<-chan ws.OrderbookEvent)

	out := make(chan StreamEvent, 256)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-bookCh:
				if !ok {
					return
				}
				ob := bookEventToOrderbook(ev)
				out <- StreamEvent{Kind: "book_update", TokenID: ev.AssetID, Book: &ob}
			}
		}
	}()
	return out, nil
}

// bookEventToOrderbook parses a ws.OrderbookEvent's string-priced levels the
// same way OrderbookClient parses a REST-fetched book.
func bookEventToOrderbook(ev ws.OrderbookEvent) Orderbook {
	ob := Orderbook{TokenID: ev.AssetID}
	for _, lvl := range ev.Bids {
		ob.Bids = append(ob.Bids, toLevel(lvl.Price, lvl.Size))
	}
	for _, lvl := range ev.Asks {
		ob.Asks = append(ob.Asks, toLevel(lvl.Price, lvl.Size))
	}
	return ob
}

func (c *TradeStreamClient) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	if err := c.ws.UnsubscribeMarketAssets(ctx, tokenIDs); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (c *TradeStreamClient) Close() error {
	return c.ws.Close()
}

// ReconnectOffset staggers reconnect attempts across a connection pool so K
// connections don't all redial at once after a shared outage.
func ReconnectOffset(connIndex, staggerSeconds int) time.Duration {
	return time.Duration(connIndex*staggerSeconds) * time.Second
}
