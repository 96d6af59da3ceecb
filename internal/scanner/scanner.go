// Package scanner materializes MarketData views by joining market.Registry
// entries with each market's most recent snapshot.
package scanner

import (
	"sync"
	"time"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/types"
)

// MarketData is one market's full scan view: identifying ids, current
// pricing, liquidity/volume, timing, and an optional price history.
type MarketData struct {
	ConditionID  string
	YesTokenID   string
	NoTokenID    string
	Question     string
	Category     string
	EndDate      time.Time
	HoursToClose float64

	// TrackingStartedAt is when the registry first discovered this market —
	// new_market uses it to gate on recency.
	TrackingStartedAt time.Time

	Price     float64
	BestBid   float64
	BestAsk   float64
	Spread    float64
	Volume24h float64
	Liquidity float64

	// PriceHistory is populated only when the caller opts in via
	// WithPriceHistory — most strategies never touch it, and fanning out a
	// history lookup on every scan would be wasted work for them.
	PriceHistory []PricePoint

	Snapshot types.Snapshot
}

type PricePoint struct {
	Timestamp time.Time
	Price     float64
}

// SnapshotStore holds the latest snapshot per market and (opt-in) a bounded
// price history. The tier scheduler's SnapshotSink writes into it; the
// scanner reads from it.
type SnapshotStore struct {
	mu          sync.RWMutex
	latest      map[string]types.Snapshot
	history     map[string][]PricePoint
	historyCap  int
}

func NewSnapshotStore(historyCap int) *SnapshotStore {
	if historyCap <= 0 {
		historyCap = 500
	}
	return &SnapshotStore{
		latest:     make(map[string]types.Snapshot),
		history:    make(map[string][]PricePoint),
		historyCap: historyCap,
	}
}

// OnSnapshot implements scheduler.SnapshotSink.
func (s *SnapshotStore) OnSnapshot(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[snap.ConditionID] = snap
	if !snap.PriceOk {
		return
	}
	h := append(s.history[snap.ConditionID], PricePoint{Timestamp: snap.Timestamp, Price: snap.Price})
	if len(h) > s.historyCap {
		h = h[len(h)-s.historyCap:]
	}
	s.history[snap.ConditionID] = h
}

func (s *SnapshotStore) Latest(conditionID string) (types.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[conditionID]
	return snap, ok
}

func (s *SnapshotStore) History(conditionID string) []PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[conditionID]
	out := make([]PricePoint, len(h))
	copy(out, h)
	return out
}

// Options controls what a Scan call enriches. PriceHistory is off by
// default: only a strategy that needs a price series (mean reversion)
// requests it.
type Options struct {
	PriceHistory bool
}

func WithPriceHistory() Options { return Options{PriceHistory: true} }

// Scanner joins the registry with the snapshot store to produce MarketData
// views on demand.
type Scanner struct {
	registry *market.Registry
	store    *SnapshotStore
}

func New(reg *market.Registry, store *SnapshotStore) *Scanner {
	return &Scanner{registry: reg, store: store}
}

// Scan returns a MarketData view for every active market that has a
// snapshot. A market discovered but never yet assembled has no view until
// its first tick lands.
func (s *Scanner) Scan(opts Options) []MarketData {
	now := time.Now()
	var out []MarketData
	for _, m := range s.registry.Active() {
		snap, ok := s.store.Latest(m.ConditionID)
		if !ok {
			continue
		}
		md := MarketData{
			ConditionID:  m.ConditionID,
			YesTokenID:   m.YesTokenID,
			NoTokenID:    m.NoTokenID,
			Question:     m.Question,
			Category:     m.Category,
			EndDate:      m.EndDate,
			HoursToClose: m.HoursToClose(now),
			TrackingStartedAt: m.TrackingStartedAt,
			Price:        snap.Price,
			BestBid:      snap.BestBid,
			BestAsk:      snap.BestAsk,
			Spread:       snap.Spread,
			Volume24h:    snap.Volume24h,
			Liquidity:    snap.Liquidity,
			Snapshot:     snap,
		}
		if opts.PriceHistory {
			md.PriceHistory = s.store.History(m.ConditionID)
		}
		out = append(out, md)
	}
	return out
}
