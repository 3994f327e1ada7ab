// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/vitalis/internal/metrics"
)

// MemoryStore is an in-process Store. Data is lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	retention   time.Duration
	historyCap  int
	now         func() time.Time
	events      map[string]time.Time // event key -> expiry
	states      map[string]RecommendationState
	implemented map[string]map[string]struct{} // user:category -> item IDs
	usage       map[string]map[string]UsageRecord
	searches    map[string][]SearchEntry // newest first
	pending     map[string]struct{}      // user:item awaiting reinforcement
}

// NewMemoryStore creates an empty store. Event IDs are remembered for
// retention; historyCap bounds stored searches per user.
func NewMemoryStore(retention time.Duration, historyCap int) *MemoryStore {
	return &MemoryStore{
		retention:   retention,
		historyCap:  historyCap,
		now:         time.Now,
		events:      make(map[string]time.Time),
		states:      make(map[string]RecommendationState),
		implemented: make(map[string]map[string]struct{}),
		usage:       make(map[string]map[string]UsageRecord),
		searches:    make(map[string][]SearchEntry),
		pending:     make(map[string]struct{}),
	}
}

// seen reports whether the event was applied and, if not, marks it.
// Callers hold the write lock.
func (m *MemoryStore) seen(kind, userID, eventID string) bool {
	k := kind + ":" + userID + ":" + eventID
	now := m.now()
	if expiry, ok := m.events[k]; ok && (m.retention <= 0 || now.Before(expiry)) {
		return true
	}
	m.events[k] = now.Add(m.retention)
	return false
}

func (m *MemoryStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

// RecordUsage increments the usage counter once per event ID.
func (m *MemoryStore) RecordUsage(ctx context.Context, ev UsageEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindUsage, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return WriteResult{}, err
	}

	bucket := ev.UserID + ":" + ev.ItemType
	if m.seen(KindUsage, ev.UserID, ev.EventID) {
		return WriteResult{UseCount: m.usage[bucket][ev.ItemID].UseCount}, nil
	}
	if m.usage[bucket] == nil {
		m.usage[bucket] = make(map[string]UsageRecord)
	}
	var prev *UsageRecord
	if rec, ok := m.usage[bucket][ev.ItemID]; ok {
		prev = &rec
	}
	rec := applyUsage(prev, ev)
	m.usage[bucket][ev.ItemID] = rec
	return WriteResult{Applied: true, UseCount: rec.UseCount}, nil
}

// SaveFeedback applies a feedback event once per event ID.
func (m *MemoryStore) SaveFeedback(ctx context.Context, ev FeedbackEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindFeedback, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return WriteResult{}, err
	}
	sk := ev.UserID + ":" + ev.ItemID
	_, pending := m.pending[sk]
	if m.seen(KindFeedback, ev.UserID, ev.EventID) {
		return WriteResult{ReinforcementPending: pending}, nil
	}

	var prev *RecommendationState
	if st, ok := m.states[sk]; ok {
		prev = &st
	}
	state, newly := applyFeedback(prev, ev)
	m.states[sk] = state

	if prev != nil && prev.Category != state.Category {
		delete(m.implemented[ev.UserID+":"+prev.Category], ev.ItemID)
	}
	ik := ev.UserID + ":" + state.Category
	if state.Implemented {
		if m.implemented[ik] == nil {
			m.implemented[ik] = make(map[string]struct{})
		}
		m.implemented[ik][ev.ItemID] = struct{}{}
	} else {
		delete(m.implemented[ik], ev.ItemID)
	}
	if newly {
		m.pending[sk] = struct{}{}
	}
	return WriteResult{Applied: true, NewlyImplemented: newly, ReinforcementPending: pending || newly}, nil
}

// AckReinforcement clears the pending reinforcement for one user and item.
func (m *MemoryStore) AckReinforcement(ctx context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return err
	}
	delete(m.pending, userID+":"+itemID)
	return nil
}

// State returns the stored state for one user and item.
func (m *MemoryStore) State(ctx context.Context, userID, itemID string) (RecommendationState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.begin(ctx); err != nil {
		return RecommendationState{}, false, err
	}
	st, ok := m.states[userID+":"+itemID]
	return st, ok, nil
}

// LogSearch appends a search, keeping at most historyCap per user.
func (m *MemoryStore) LogSearch(ctx context.Context, ev SearchEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindSearch, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, m.now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx); err != nil {
		return WriteResult{}, err
	}
	if m.seen(KindSearch, ev.UserID, ev.EventID) {
		return WriteResult{}, nil
	}

	list := append(m.searches[ev.UserID], SearchEntry{
		EventID:     ev.EventID,
		Term:        ev.Term,
		Category:    ev.Category,
		ResultCount: ev.ResultCount,
		SearchedAt:  ev.OccurredAt,
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].SearchedAt.After(list[j].SearchedAt) })
	if m.historyCap > 0 && len(list) > m.historyCap {
		list = list[:m.historyCap]
	}
	m.searches[ev.UserID] = list
	return WriteResult{Applied: true}, nil
}

// RecentSearches returns the user's searches, newest first.
func (m *MemoryStore) RecentSearches(ctx context.Context, userID string, limit int) ([]SearchEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	list := m.searches[userID]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return append([]SearchEntry{}, list...), nil
}

// ImplementedItems returns the user's implemented item IDs in category,
// sorted.
func (m *MemoryStore) ImplementedItems(ctx context.Context, userID, category string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerRead("implemented_items", time.Since(start)) }()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m.implemented[userID+":"+category]))
	for id := range m.implemented[userID+":"+category] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// UsageHistory returns the user's usage of itemType. limit <= 0 returns all.
func (m *MemoryStore) UsageHistory(ctx context.Context, userID, itemType string, limit int) ([]UsageRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerRead("usage_history", time.Since(start)) }()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	recs := make([]UsageRecord, 0, len(m.usage[userID+":"+itemType]))
	for _, rec := range m.usage[userID+":"+itemType] {
		recs = append(recs, rec)
	}
	sortUsage(recs)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Trending counts distinct users per item of itemType used since the cutoff.
func (m *MemoryStore) Trending(ctx context.Context, itemType string, since time.Time, limit int) ([]TrendingItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, bucket := range m.usage {
		for _, rec := range bucket {
			if rec.ItemType == itemType && !rec.LastUsed.Before(since) {
				counts[rec.ItemID]++
			}
		}
	}
	return rankTrending(counts, itemType, limit), nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
