// Package wsmanager maintains a pool of K venue trade-stream connections,
// each carrying up to M token subscriptions, re-balancing on every
// registry change and reconnecting with a staggered backoff per connection.
package wsmanager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// EventHandler receives fused stream events off any connection in the pool.
type EventHandler interface {
	OnEvent(venue.StreamEvent)
}

type Config struct {
	Connections      int // K
	PerConnectionCap int // M
	RefreshInterval  time.Duration
	StaggerSeconds   int
	StaleAfter       time.Duration
	MinTradeRate     float64 // trades/min floor; 0 disables the check
	EnabledTiers     []int
}

// connState tracks one pool slot's health: connected, last event heartbeat,
// and the token set it currently carries. tradeCount/windowStart back a
// trades-per-minute moving average, reset each time checkHealth samples it.
type connState struct {
	mu          sync.Mutex
	client      *venue.TradeStreamClient
	index       int
	tokens      map[string]bool
	connected   bool
	lastEventAt time.Time
	tradeCount  int
	windowStart time.Time
}

// tradeRatePerMin returns the connection's trades-per-minute since
// windowStart and resets the window. Caller must hold cs.mu.
func (cs *connState) tradeRatePerMin(now time.Time) (rate float64, ok bool) {
	if cs.windowStart.IsZero() {
		cs.windowStart = now
		return 0, false
	}
	elapsed := now.Sub(cs.windowStart)
	if elapsed < time.Minute {
		return 0, false
	}
	rate = float64(cs.tradeCount) / elapsed.Minutes()
	cs.tradeCount = 0
	cs.windowStart = now
	return rate, true
}

// Manager owns the pool and the desired-vs-assigned token-set diff.
type Manager struct {
	cfg       Config
	registry  *market.Registry
	newClient func() *venue.TradeStreamClient
	handler   EventHandler
	log       zerolog.Logger

	mu    sync.Mutex
	conns []*connState
}

func New(cfg Config, reg *market.Registry, newClient func() *venue.TradeStreamClient, handler EventHandler, log zerolog.Logger) *Manager {
	if cfg.Connections <= 0 {
		cfg.Connections = 4
	}
	if cfg.PerConnectionCap <= 0 {
		cfg.PerConnectionCap = 500
	}
	return &Manager{cfg: cfg, registry: reg, newClient: newClient, handler: handler, log: log}
}

// Run establishes the pool and re-balances subscriptions on every refresh
// tick until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	for i := 0; i < m.cfg.Connections; i++ {
		cs := &connState{client: m.newClient(), index: i, tokens: make(map[string]bool)}
		m.conns = append(m.conns, cs)
	}
	m.mu.Unlock()

	m.rebalance(ctx)

	interval := m.cfg.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.rebalance(ctx)
			m.checkHealth(ctx)
		}
	}
}

// desiredTokens returns the YES token of every active market in an enabled
// tier, sorted by priority: tier descending, hours-to-close ascending — the
// order in which oversubscription evicts from the tail.
func (m *Manager) desiredTokens(now time.Time) []string {
	tiers := m.cfg.EnabledTiers
	if len(tiers) == 0 {
		tiers = []int{2, 3, 4}
	}
	tierSet := make(map[int]bool, len(tiers))
	for _, t := range tiers {
		tierSet[t] = true
	}

	type candidate struct {
		tokenID string
		tier    int
		hours   float64
	}
	var cands []candidate
	for _, mk := range m.registry.Active() {
		if !tierSet[mk.Tier] || mk.YesTokenID == "" {
			continue
		}
		cands = append(cands, candidate{tokenID: mk.YesTokenID, tier: mk.Tier, hours: mk.HoursToClose(now)})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].tier != cands[j].tier {
			return cands[i].tier > cands[j].tier
		}
		return cands[i].hours < cands[j].hours
	})

	capacity := m.cfg.Connections * m.cfg.PerConnectionCap
	if len(cands) > capacity {
		m.log.Warn().Int("desired", len(cands)).Int("capacity", capacity).Msg("oversubscribed: evicting lowest-priority tokens")
		cands = cands[:capacity]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.tokenID
	}
	return out
}

// rebalance computes the desired token set, packs it M-per-connection, and
// issues a diff-based subscribe/unsubscribe against each connection's
// current set.
func (m *Manager) rebalance(ctx context.Context) {
	desired := m.desiredTokens(time.Now())

	m.mu.Lock()
	conns := m.conns
	m.mu.Unlock()
	if len(conns) == 0 {
		return
	}

	buckets := make([][]string, len(conns))
	for i, tok := range desired {
		b := i / m.cfg.PerConnectionCap
		if b >= len(buckets) {
			break
		}
		buckets[b] = append(buckets[b], tok)
	}

	for i, cs := range conns {
		m.syncConn(ctx, cs, buckets[i])
	}
}

func (m *Manager) syncConn(ctx context.Context, cs *connState, want []string) {
	cs.mu.Lock()
	wantSet := make(map[string]bool, len(want))
	for _, t := range want {
		wantSet[t] = true
	}
	var toAdd, toRemove []string
	for _, t := range want {
		if !cs.tokens[t] {
			toAdd = append(toAdd, t)
		}
	}
	for t := range cs.tokens {
		if !wantSet[t] {
			toRemove = append(toRemove, t)
		}
	}
	cs.mu.Unlock()

	if len(toRemove) > 0 {
		if err := cs.client.Unsubscribe(ctx, toRemove); err != nil {
			m.log.Warn().Err(err).Int("conn", cs.index).Msg("unsubscribe failed")
		} else {
			cs.mu.Lock()
			for _, t := range toRemove {
				delete(cs.tokens, t)
			}
			cs.mu.Unlock()
		}
	}
	if len(toAdd) > 0 {
		events, err := cs.client.Subscribe(ctx, toAdd)
		if err != nil {
			m.log.Warn().Err(err).Int("conn", cs.index).Msg("subscribe failed")
			return
		}
		cs.mu.Lock()
		for _, t := range toAdd {
			cs.tokens[t] = true
		}
		cs.connected = true
		cs.mu.Unlock()
		go m.drain(ctx, cs, events)
	}
}

func (m *Manager) drain(ctx context.Context, cs *connState, events <-chan venue.StreamEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				cs.mu.Lock()
				cs.connected = false
				cs.mu.Unlock()
				m.reconnect(ctx, cs)
				return
			}
			cs.mu.Lock()
			cs.lastEventAt = time.Now()
			if ev.Kind == "trade" {
				cs.tradeCount++
			}
			cs.mu.Unlock()
			if ev.TokenID != "" {
				if conditionID, ok := m.registry.ConditionForToken(ev.TokenID); ok {
					m.registry.RecordTrade(conditionID, cs.lastEventAt)
				}
			}
			if m.handler != nil {
				m.handler.OnEvent(ev)
			}
		}
	}
}

// reconnect redials after a per-connection stagger so a shared outage
// doesn't redial all K connections simultaneously.
func (m *Manager) reconnect(ctx context.Context, cs *connState) {
	offset := venue.ReconnectOffset(cs.index, m.cfg.StaggerSeconds)
	select {
	case <-ctx.Done():
		return
	case <-time.After(offset):
	}

	cs.mu.Lock()
	want := make([]string, 0, len(cs.tokens))
	for t := range cs.tokens {
		want = append(want, t)
	}
	cs.tokens = make(map[string]bool)
	cs.tradeCount = 0
	cs.windowStart = time.Time{}
	cs.mu.Unlock()

	m.syncConn(ctx, cs, want)
}

// checkHealth force-reconnects any connection whose last event predates the
// stale-after floor, or whose trades-per-minute moving average has fallen
// below the configured floor.
func (m *Manager) checkHealth(ctx context.Context) {
	m.mu.Lock()
	conns := m.conns
	m.mu.Unlock()
	now := time.Now()
	for _, cs := range conns {
		cs.mu.Lock()
		stale := m.cfg.StaleAfter > 0 && cs.connected && !cs.lastEventAt.IsZero() && now.Sub(cs.lastEventAt) > m.cfg.StaleAfter
		rate, sampled := cs.tradeRatePerMin(now)
		starved := m.cfg.MinTradeRate > 0 && cs.connected && sampled && rate < m.cfg.MinTradeRate
		cs.mu.Unlock()

		switch {
		case stale:
			m.log.Warn().Int("conn", cs.index).Msg("connection stale, forcing reconnect")
			go m.reconnect(ctx, cs)
		case starved:
			m.log.Warn().Int("conn", cs.index).Float64("trade_rate", rate).Msg("trade rate below floor, forcing reconnect")
			go m.reconnect(ctx, cs)
		}
	}
}

