// Package ringbuffer holds the bounded per-market trade window that is the
// sole source of trade-flow and whale fields on a snapshot.
package ringbuffer

import (
	"sync"
	"time"

	"github.com/polyharvest/tiered-trader/internal/types"
)

// Buffer is a bounded FIFO of recent trades per market: single-writer per
// market (that market's WS connection owns writes), many readers.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	trades   map[string][]types.Trade // conditionID -> trades, oldest first
	lastSeen map[string]time.Time
}

func New(capacity int, ttl time.Duration) *Buffer {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Buffer{
		capacity: capacity,
		ttl:      ttl,
		trades:   make(map[string][]types.Trade),
		lastSeen: make(map[string]time.Time),
	}
}

// Push appends a trade, evicting the oldest entry when capacity is hit.
// O(1) amortized.
func (b *Buffer) Push(conditionID string, t types.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.trades[conditionID]
	s = append(s, t)
	if len(s) > b.capacity {
		s = s[len(s)-b.capacity:]
	}
	b.trades[conditionID] = s
	b.lastSeen[conditionID] = t.Timestamp
}

// Recent returns all trades for conditionID stamped at or after now-window,
// preserving arrival order. Cost linear in the window's trade count.
func (b *Buffer) Recent(conditionID string, now time.Time, window time.Duration) []types.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cutoff := now.Add(-window)
	s := b.trades[conditionID]
	out := make([]types.Trade, 0, len(s))
	for _, t := range s {
		if !t.Timestamp.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// LastEventAt is the heartbeat used by health checks; zero time if unseen.
func (b *Buffer) LastEventAt(conditionID string) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeen[conditionID]
}

// Prune drops entries older than the TTL, and a market's slice entirely once
// all of its entries have expired.
func (b *Buffer) Prune(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := now.Add(-b.ttl)
	for id, s := range b.trades {
		i := 0
		for i < len(s) && s[i].Timestamp.Before(cutoff) {
			i++
		}
		if i > 0 {
			if i == len(s) {
				delete(b.trades, id)
			} else {
				b.trades[id] = s[i:]
			}
		}
	}
}

// FlowMetrics is the trade-flow aggregate over a window, computed on demand
// from the buffer contents — never stored.
type FlowMetrics struct {
	TradeCount int
	BuyCount   int
	SellCount  int
	Volume     float64
	BuyVolume  float64
	SellVolume float64
	AvgSize    float64
	MaxSize    float64
	Vwap       float64
}

// Flow computes the 1h (or any window) flow aggregate from a trade slice.
// BuyCount+SellCount always equals TradeCount, BuyVolume+SellVolume always
// equals Volume.
func Flow(trades []types.Trade) FlowMetrics {
	var m FlowMetrics
	var notional float64
	for _, t := range trades {
		m.TradeCount++
		m.Volume += t.Size
		notional += t.Price * t.Size
		if t.Size > m.MaxSize {
			m.MaxSize = t.Size
		}
		if t.Side == types.SideBuy {
			m.BuyCount++
			m.BuyVolume += t.Size
		} else {
			m.SellCount++
			m.SellVolume += t.Size
		}
	}
	if m.TradeCount > 0 {
		m.AvgSize = m.Volume / float64(m.TradeCount)
	}
	if m.Volume > 0 {
		m.Vwap = notional / m.Volume
	}
	return m
}

// WhaleMetrics is the whale-flow aggregate over a window.
type WhaleMetrics struct {
	WhaleCount       int
	WhaleVolume      float64
	WhaleBuyVolume   float64
	WhaleSellVolume  float64
	WhaleNetFlow     float64
	WhaleBuyRatio    float64
	TimeSinceWhale   time.Duration
	PctVolumeFromWhales float64
}

// Whale computes the whale aggregate: trades with WhaleTier >= 2, against the
// same-window total volume for the whale-share figure.
func Whale(trades []types.Trade, now time.Time, totalVolume float64) WhaleMetrics {
	var m WhaleMetrics
	var lastWhaleAt time.Time
	for _, t := range trades {
		if t.WhaleTier < 2 {
			continue
		}
		m.WhaleCount++
		m.WhaleVolume += t.Size
		if t.Side == types.SideBuy {
			m.WhaleBuyVolume += t.Size
		} else {
			m.WhaleSellVolume += t.Size
		}
		if t.Timestamp.After(lastWhaleAt) {
			lastWhaleAt = t.Timestamp
		}
	}
	m.WhaleNetFlow = m.WhaleBuyVolume - m.WhaleSellVolume
	if m.WhaleVolume > 0 {
		m.WhaleBuyRatio = m.WhaleBuyVolume / m.WhaleVolume
	}
	if totalVolume > 0 {
		m.PctVolumeFromWhales = m.WhaleVolume / totalVolume
	}
	if !lastWhaleAt.IsZero() {
		m.TimeSinceWhale = now.Sub(lastWhaleAt)
	}
	return m
}
