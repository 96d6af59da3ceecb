// Package venue wraps polymarket-go-sdk calls behind three named clients,
// each rate-limited and circuit-broken the same way regardless of which SDK
// surface (gamma, clob, ws) sits underneath.
package venue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// MarketDescriptor is what the Discovery client returns per active market,
// before it's folded into a market.Registry entry.
type MarketDescriptor struct {
	ConditionID string
	Slug        string
	Question    string
	YesTokenID  string
	NoTokenID   string
	EndDate     time.Time
	Category    string
	Volume24h   float64
	Liquidity   float64
	EnableBook  bool

	// Momentum and rolling-volume fields, populated from Gamma's per-market
	// fields (oneDayPriceChange, oneWeekPriceChange, oneMonthPriceChange,
	// volume1wk). A Gamma response that omits or fails to parse one of these
	// leaves the corresponding Ok flag false rather than a bare zero.
	PriceChange1d float64
	PriceChange1w float64
	PriceChange1m float64
	MomentumOk    bool
	Volume1w      float64
	Volume1wOk    bool
}

// Orderbook is a venue-returned book, pre-parse-failure-nulled.
type Orderbook struct {
	TokenID string
	Bids    []Level
	Asks    []Level
}

type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// StreamEvent is the union of what TradeStreamClient emits.
type StreamEvent struct {
	Kind        string // trade|book_update|price_change
	ConditionID string
	TokenID     string
	Trade       *TradeEvent
	Book        *Orderbook
	Price       decimal.Decimal
}

type TradeEvent struct {
	TokenID   string
	Price     decimal.Decimal
	Size      decimal.Decimal
	Side      string // buy|sell
	Timestamp time.Time
}

// guard wraps a rate limiter and circuit breaker around a venue call, and
// retries transient failures with capped exponential backoff. Shared by all
// three clients so they fail the same way under load.
type guard struct {
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	retries int
}

func newGuard(name string, rps float64, burst, retries int) *guard {
	return &guard{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		retries: retries,
	}
}

// TransientError marks a failure (timeout, 5xx, 429) as retryable; anything
// else is treated as permanent and surfaces on the first attempt.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func (g *guard) do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		v, err := g.cb.Execute(func() (any, error) { return fn(ctx) })
		if err == nil {
			return v, nil
		}
		lastErr = err
		var te *TransientError
		if !errors.As(err, &te) {
			return nil, err
		}
		if attempt == g.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("venue call failed after retries: %w", lastErr)
}

// parseDecimal parses a venue-supplied numeric string. ok=false means the
// field is unusable and callers must null it rather than fall back to zero.
func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
