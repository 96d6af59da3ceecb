package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"

	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// LiveExecutor places real orders through the CLOB client: build a
// signable order with clob.NewOrderBuilder, sign it, submit it. The
// resulting Fill is optimistic — it records what was submitted, not a
// confirmed match; confirmation arrives later over the order-event stream.
type LiveExecutor struct {
	client clob.Client
	signer auth.Signer
	cfg    Config
}

func NewLiveExecutor(client clob.Client, signer auth.Signer, cfg Config) *LiveExecutor {
	return &LiveExecutor{client: client, signer: signer, cfg: cfg}
}

func (e *LiveExecutor) Execute(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error) {
	switch order.Type {
	case "limit", "spread":
		return e.placeLimit(ctx, order)
	default:
		return e.placeMarket(ctx, order, book)
	}
}

func (e *LiveExecutor) placeMarket(ctx context.Context, order types.Order, book venue.Orderbook) (types.Fill, error) {
	builder := clob.NewOrderBuilder(e.client, e.signer).
		TokenID(order.TokenID).
		Side(string(order.Side)).
		AmountUSDC(order.SizeUSD).
		OrderType(clobtypes.OrderTypeFAK)

	signable, err := builder.BuildMarketWithContext(ctx)
	if err != nil {
		return types.Fill{}, fmt.Errorf("build market order: %w", err)
	}
	resp, err := e.client.CreateOrderFromSignable(ctx, signable)
	if err != nil {
		return types.Fill{}, fmt.Errorf("place market order: %w", err)
	}

	bid, ask, ok := topOfBook(book)
	price := order.Price
	if ok {
		price = ask
		if order.Side == types.SideSell {
			price = bid
		}
	}
	return e.toFill(order, resp, price), nil
}

func (e *LiveExecutor) placeLimit(ctx context.Context, order types.Order) (types.Fill, error) {
	builder := clob.NewOrderBuilder(e.client, e.signer).
		TokenID(order.TokenID).
		Side(string(order.Side)).
		Price(order.Price).
		AmountUSDC(order.SizeUSD).
		OrderType(clobtypes.OrderTypeGTC)

	signable, err := builder.BuildSignableWithContext(ctx)
	if err != nil {
		return types.Fill{}, fmt.Errorf("build limit order: %w", err)
	}
	resp, err := e.client.CreateOrderFromSignable(ctx, signable)
	if err != nil {
		return types.Fill{}, fmt.Errorf("place limit order: %w", err)
	}
	return e.toFill(order, resp, order.Price), nil
}

func (e *LiveExecutor) toFill(order types.Order, resp clobtypes.OrderResponse, price float64) types.Fill {
	var shares float64
	if price > 0 {
		shares = order.SizeUSD / price
	}
	return types.Fill{
		OrderID:          resp.ID,
		ConditionID:      order.ConditionID,
		TokenID:          order.TokenID,
		Side:             order.Side,
		Price:            price,
		Shares:           shares,
		CostUSD:          order.SizeUSD,
		SlippageVsSignal: slippageVsSignal(order.Side, order.Price, price),
		Timestamp:        time.Now(),
	}
}
