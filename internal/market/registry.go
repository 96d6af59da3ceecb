// Package market owns the set of markets currently under tracking: the
// discovery/filtering pass that adds them, the tier table that classifies
// them, and the stale sweep that retires them.
package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// DiscoveryFilter bounds which venue-listed markets enter tracking.
type DiscoveryFilter struct {
	MinVolume24h    float64
	RequireOrderBook bool
	MinHoursToClose  float64
	MaxHoursToClose  float64
}

// Registry is the single source of truth for tracked markets: active set,
// tier, and transition history, guarded by a writer-takes-all /
// reader-takes-a-lock sync.RWMutex.
type Registry struct {
	mu          sync.RWMutex
	markets     map[string]*types.Market // condition_id -> market
	tokenIndex  map[string]string        // token_id (yes or no) -> condition_id
	transitions []types.TierTransition

	discovery *venue.DiscoveryClient
	filter    DiscoveryFilter
}

func NewRegistry(discovery *venue.DiscoveryClient, filter DiscoveryFilter) *Registry {
	return &Registry{
		markets:    make(map[string]*types.Market),
		tokenIndex: make(map[string]string),
		discovery:  discovery,
		filter:     filter,
	}
}

// ConditionForToken resolves a YES or NO token id back to its market's
// condition id, for components (the WS manager) that only see token ids on
// the wire.
func (r *Registry) ConditionForToken(tokenID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tokenIndex[tokenID]
	return id, ok
}

// DiscoverOnce pulls the current active-market listing, filters it, and
// upserts by condition_id. Upsert is idempotent: re-discovering a market
// already tracked updates its venue-sourced fields but preserves tier,
// tracking_started_at, and snapshot counters.
func (r *Registry) DiscoverOnce(ctx context.Context) (added int, updated int, err error) {
	descs, err := r.discovery.ListActiveMarkets(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active markets: %w", err)
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range descs {
		if d.Volume24h < r.filter.MinVolume24h {
			continue
		}
		if r.filter.RequireOrderBook && !d.EnableBook {
			continue
		}
		hrs := d.EndDate.Sub(now).Hours()
		if r.filter.MinHoursToClose > 0 && hrs < r.filter.MinHoursToClose {
			continue
		}
		if r.filter.MaxHoursToClose > 0 && hrs > r.filter.MaxHoursToClose {
			continue
		}

		if existing, ok := r.markets[d.ConditionID]; ok {
			existing.Slug = d.Slug
			existing.Question = d.Question
			existing.YesTokenID = d.YesTokenID
			existing.NoTokenID = d.NoTokenID
			existing.EndDate = d.EndDate
			existing.Category = d.Category
			existing.Active = true
			r.indexTokens(existing)
			updated++
			continue
		}

		m := &types.Market{
			ConditionID:       d.ConditionID,
			Slug:              d.Slug,
			Question:          d.Question,
			YesTokenID:        d.YesTokenID,
			NoTokenID:         d.NoTokenID,
			EndDate:           d.EndDate,
			Category:          d.Category,
			InitialVolume:     d.Volume24h,
			InitialLiquidity:  d.Liquidity,
			Active:            true,
			Tier:              types.TierForHours(hrs),
			TrackingStartedAt: now,
		}
		r.markets[d.ConditionID] = m
		r.indexTokens(m)
		added++
	}
	return added, updated, nil
}

// indexTokens keeps tokenIndex in sync with a market's current token ids.
// Caller must hold r.mu.
func (r *Registry) indexTokens(m *types.Market) {
	if m.YesTokenID != "" {
		r.tokenIndex[m.YesTokenID] = m.ConditionID
	}
	if m.NoTokenID != "" {
		r.tokenIndex[m.NoTokenID] = m.ConditionID
	}
}

// RecomputeTiers applies the tier table to every active market's current
// hours-to-close and records a transition for each market whose tier
// changed since the last pass. A market whose end_date has passed is
// deactivated with ReasonExpired instead of being reclassified into a tier
// it no longer belongs in.
func (r *Registry) RecomputeTiers(now time.Time) []types.TierTransition {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []types.TierTransition
	for _, m := range r.markets {
		if !m.Active {
			continue
		}
		hrs := m.HoursToClose(now)
		if hrs <= 0 {
			t := types.TierTransition{
				ConditionID:         m.ConditionID,
				FromTier:            m.Tier,
				ToTier:              -1,
				Timestamp:           now,
				HoursToCloseAtTrans: hrs,
				Reason:              types.ReasonExpired,
			}
			m.Active = false
			changes = append(changes, t)
			r.transitions = append(r.transitions, t)
			continue
		}
		newTier := types.TierForHours(hrs)
		if newTier != m.Tier {
			reason := types.ReasonPromotion
			if newTier < m.Tier {
				reason = types.ReasonDemotion
			}
			t := types.TierTransition{
				ConditionID:         m.ConditionID,
				FromTier:            m.Tier,
				ToTier:              newTier,
				Timestamp:           now,
				HoursToCloseAtTrans: hrs,
				Reason:              reason,
			}
			m.Tier = newTier
			changes = append(changes, t)
			r.transitions = append(r.transitions, t)
		}
	}
	return changes
}

// Deactivate marks a market inactive (resolved, closed, or swept for
// staleness) and records a terminal transition with ToTier=-1.
func (r *Registry) Deactivate(conditionID string, reason types.TierTransitionReason, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markets[conditionID]
	if !ok || !m.Active {
		return
	}
	t := types.TierTransition{
		ConditionID:         conditionID,
		FromTier:            m.Tier,
		ToTier:              -1,
		Timestamp:           at,
		HoursToCloseAtTrans: m.HoursToClose(at),
		Reason:              reason,
	}
	m.Active = false
	r.transitions = append(r.transitions, t)
}

// Resolve marks a tracked market resolved with its terminal outcome and
// deactivates it. Idempotent: a market already resolved is left untouched,
// since Registry is the single owner of that transition.
func (r *Registry) Resolve(conditionID string, outcome types.Outcome, at time.Time) (types.Market, bool) {
	r.mu.Lock()
	m, ok := r.markets[conditionID]
	if !ok || m.Resolved {
		r.mu.Unlock()
		return types.Market{}, false
	}
	m.Resolved = true
	m.Closed = true
	m.Outcome = outcome
	snapshot := *m
	r.mu.Unlock()

	r.Deactivate(conditionID, types.ReasonResolved, at)
	return snapshot, true
}

// SweepStale deactivates active markets whose last trade/snapshot activity
// exceeds their tier's stale threshold.
func (r *Registry) SweepStale(now time.Time) []string {
	r.mu.RLock()
	var stale []string
	for id, m := range r.markets {
		if !m.Active {
			continue
		}
		last := m.LastTradeAt
		if m.LastSnapshotAt.After(last) {
			last = m.LastSnapshotAt
		}
		if last.IsZero() {
			last = m.TrackingStartedAt
		}
		if now.Sub(last) > types.StaleThreshold(m.Tier) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.Deactivate(id, types.ReasonNoTrades, now)
	}
	return stale
}

// Seed inserts or replaces a market directly, bypassing discovery. Used by
// tests and by any one-off backfill that already has a fully-formed Market.
func (r *Registry) Seed(m *types.Market) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markets[m.ConditionID] = m
	r.indexTokens(m)
}

// Get returns a copy of the tracked market, or false if not found.
func (r *Registry) Get(conditionID string) (types.Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[conditionID]
	if !ok {
		return types.Market{}, false
	}
	return *m, true
}

// ByTier returns active condition IDs at the given tier, sorted ascending by
// hours-to-close (the scheduler's per-tier loops process the most urgent
// first within a tick).
func (r *Registry) ByTier(tier int, now time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type entry struct {
		id  string
		hrs float64
	}
	var entries []entry
	for id, m := range r.markets {
		if !m.Active || m.Tier != tier {
			continue
		}
		entries = append(entries, entry{id: id, hrs: m.HoursToClose(now)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].hrs < entries[j].hrs })
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Active returns every active market, for components (WS manager,
// discovery loop) that need the full set rather than one tier.
func (r *Registry) Active() []types.Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Market, 0, len(r.markets))
	for _, m := range r.markets {
		if m.Active {
			out = append(out, *m)
		}
	}
	return out
}

// RecordSnapshot stamps a market's last-snapshot heartbeat, used by the
// stale sweep.
func (r *Registry) RecordSnapshot(conditionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.markets[conditionID]; ok {
		m.SnapshotCount++
		m.LastSnapshotAt = at
	}
}

// RecordTrade stamps a market's last-trade heartbeat.
func (r *Registry) RecordTrade(conditionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.markets[conditionID]; ok {
		m.LastTradeAt = at
	}
}

// Transitions returns all recorded tier transitions, oldest first.
func (r *Registry) Transitions() []types.TierTransition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.TierTransition, len(r.transitions))
	copy(out, r.transitions)
	return out
}
