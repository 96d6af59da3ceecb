package types

import "time"

// PositionStatus is the lifecycle stage of a Position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "open"
	PositionPartial PositionStatus = "partial"
	PositionClosed  PositionStatus = "closed"
)

// Position is an open or closed exposure owned by one strategy on one
// (market, token). CostBasis = AvgEntryPrice * SizeShares holds at open;
// once Status is closed, RealizedPnL is final.
type Position struct {
	Strategy      string
	ConditionID   string
	TokenID       string
	Token         Token
	Side          Side
	AvgEntryPrice float64
	SizeShares    float64
	CostBasis     float64
	CurrentMark   float64
	UnrealizedPnL float64
	Status        PositionStatus
	RealizedPnL   float64
	OpenedAt      time.Time
	ClosedAt      time.Time
	Paper         bool
}

// Fill is one execution against an approved signal.
type Fill struct {
	OrderID      string
	TradeID      string
	ConditionID  string
	TokenID      string
	Side         Side
	Price        float64
	Shares       float64
	CostUSD      float64
	FeeUSD       float64
	SlippageVsSignal float64
	Timestamp    time.Time
}

// ApplyFill folds a fill into a position using size-weighted average entry
// price on same-direction adds, and realizes PnL on closing/reducing fills.
func (p *Position) ApplyFill(f Fill) {
	signedFillSize := f.Shares
	if f.Side == SideSell {
		signedFillSize = -f.Shares
	}

	switch {
	case p.SizeShares == 0:
		p.SizeShares = signedFillSize
		p.AvgEntryPrice = f.Price
		p.CostBasis = p.AvgEntryPrice * absFloat(p.SizeShares)
		p.OpenedAt = f.Timestamp
	case sameSign(p.SizeShares, signedFillSize):
		totalCost := p.AvgEntryPrice*absFloat(p.SizeShares) + f.Price*f.Shares
		p.SizeShares += signedFillSize
		if p.SizeShares != 0 {
			p.AvgEntryPrice = totalCost / absFloat(p.SizeShares)
		}
		p.CostBasis = p.AvgEntryPrice * absFloat(p.SizeShares)
	default:
		closedQty := f.Shares
		if closedQty > absFloat(p.SizeShares) {
			closedQty = absFloat(p.SizeShares)
		}
		if p.SizeShares > 0 {
			p.RealizedPnL += (f.Price - p.AvgEntryPrice) * closedQty
		} else {
			p.RealizedPnL += (p.AvgEntryPrice - f.Price) * closedQty
		}
		remaining := f.Shares - closedQty
		if p.SizeShares > 0 {
			p.SizeShares -= closedQty
		} else {
			p.SizeShares += closedQty
		}
		if remaining > 0 {
			// Fill size exceeded the open exposure: flip direction.
			if f.Side == SideSell {
				p.SizeShares = -remaining
			} else {
				p.SizeShares = remaining
			}
			p.AvgEntryPrice = f.Price
		}
		p.CostBasis = p.AvgEntryPrice * absFloat(p.SizeShares)
	}

	if p.SizeShares == 0 {
		p.Status = PositionClosed
		p.ClosedAt = f.Timestamp
	} else {
		p.Status = PositionOpen
	}
}

// SettleTerminal closes a position at a terminal payoff price: realized PnL
// = size*(payoff - avg_entry) - fees for a long, or the mirror for a short.
func (p *Position) SettleTerminal(payoffPrice, fees float64, at time.Time) {
	if p.SizeShares > 0 {
		p.RealizedPnL += p.SizeShares*(payoffPrice-p.AvgEntryPrice) - fees
	} else if p.SizeShares < 0 {
		p.RealizedPnL += absFloat(p.SizeShares)*(p.AvgEntryPrice-payoffPrice) - fees
	}
	p.SizeShares = 0
	p.Status = PositionClosed
	p.ClosedAt = at
}

func sameSign(a, b float64) bool {
	return (a >= 0 && b >= 0) || (a < 0 && b < 0)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Signal is a strategy's output: immutable once emitted. Price is the
// strategy's best estimate of what TokenID currently trades at — the sizing
// gate's Kelly method needs it as the entry price for its edge calculation.
type Signal struct {
	Strategy     string
	Version      string
	ConditionID  string
	TokenID      string
	Side         Side
	Price        float64
	Reason       string
	Edge         float64
	Confidence   float64
	SuggestedUSD float64
	Timestamp    time.Time
	Metadata     map[string]any
}

// RejectionReason enumerates the risk gate's reject reasons in priority order.
type RejectionReason string

const (
	RejectNone                     RejectionReason = ""
	RejectDrawdownExceeded         RejectionReason = "drawdown_exceeded"
	RejectInsufficientStrategyBal  RejectionReason = "insufficient_strategy_balance"
	RejectMaxPositions             RejectionReason = "max_positions"
	RejectMaxTotalExposure         RejectionReason = "max_total_exposure"
	RejectMaxPositionUSD           RejectionReason = "max_position_usd"
	RejectDuplicatePosition        RejectionReason = "duplicate_position"
)

// Order describes an approved, sized order about to be placed.
type Order struct {
	ConditionID string
	TokenID     string
	Side        Side
	Type        string // market | limit | spread
	Price       float64 // limit/spread reference price; 0 for market
	SizeUSD     float64
	ClientID    string
}

// TradeDecision is an append-only record pairing a Signal with the risk
// gate's verdict and, if approved and filled, the resulting order and fill.
type TradeDecision struct {
	Signal   Signal
	Approved bool
	Reason   RejectionReason
	Order    *Order
	Fill     *Fill
	Decided  time.Time
}

// Wallet is per-strategy accounting. Global paper balance aggregates over
// every strategy's wallet.
type Wallet struct {
	Strategy         string
	AllocatedUSD     float64
	AvailableUSD     float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	TradeCount       int
	WinCount         int
	LossCount        int
	HighWaterMark    float64
	MaxDrawdownPct   float64
}

// Balance is allocated + realized + unrealized, the figure drawdown is
// measured against.
func (w Wallet) Balance() float64 {
	return w.AllocatedUSD + w.RealizedPnL + w.UnrealizedPnL
}
