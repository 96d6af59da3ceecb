package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store, for unit tests and for running the
// engine without a database configured.
type MemStore struct {
	mu sync.RWMutex

	decisions []DecisionRecord
	nextID    int64

	positions map[string]PositionRecord // strategy|condition|token -> record

	wallets map[string]WalletRecord // strategy -> latest snapshot
}

func NewMemStore() *MemStore {
	return &MemStore{
		positions: make(map[string]PositionRecord),
		wallets:   make(map[string]WalletRecord),
	}
}

func (m *MemStore) AppendDecision(_ context.Context, d DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	d.ID = m.nextID
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *MemStore) RecentDecisions(_ context.Context, limit int) ([]DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit >= len(m.decisions) {
		out := make([]DecisionRecord, len(m.decisions))
		copy(out, m.decisions)
		return out, nil
	}
	out := make([]DecisionRecord, limit)
	copy(out, m.decisions[len(m.decisions)-limit:])
	return out, nil
}

func positionKey(strategy, conditionID, tokenID string) string {
	return strategy + "|" + conditionID + "|" + tokenID
}

func (m *MemStore) UpsertPosition(_ context.Context, p PositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[positionKey(p.Strategy, p.ConditionID, p.TokenID)] = p
	return nil
}

func (m *MemStore) OpenPositions(_ context.Context) ([]PositionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PositionRecord
	for _, p := range m.positions {
		if p.Status == "open" || p.Status == "partial" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemStore) SaveWalletSnapshot(_ context.Context, w WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.Strategy] = w
	return nil
}

func (m *MemStore) LatestWalletSnapshot(_ context.Context, strategy string) (WalletRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[strategy]
	return w, ok, nil
}

func (m *MemStore) Close() error { return nil }
