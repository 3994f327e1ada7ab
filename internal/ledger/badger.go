// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/metrics"
)

const (
	prefixEvent  = "event:"
	prefixState  = "state:"
	prefixImpl   = "impl:"
	prefixUsage  = "usage:"
	prefixSearch = "search:"
	prefixReinf  = "reinforce:"

	// maxConflictRetries bounds re-running a transaction after ErrConflict.
	maxConflictRetries = 32
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	Path               string
	InMemory           bool
	EventRetention     time.Duration
	SearchHistoryLimit int
}

// BadgerStore is a Store backed by BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens or creates the ledger database.
func OpenBadger(cfg BadgerConfig, logger zerolog.Logger) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("ledger path is required unless running in memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	log := logger.With().Str("component", "ledger").Logger()
	log.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("event_retention", cfg.EventRetention).
		Msg("Interaction ledger opened")

	return &BadgerStore{db: db, cfg: cfg, now: time.Now, logger: log}, nil
}

// eventKey is scoped per user; clients choose event IDs independently.
func eventKey(kind, userID, eventID string) []byte {
	return []byte(prefixEvent + kind + ":" + userID + ":" + eventID)
}

func reinforceKey(userID, itemID string) []byte {
	return []byte(prefixReinf + userID + ":" + itemID)
}

func stateKey(userID, itemID string) []byte {
	return []byte(prefixState + userID + ":" + itemID)
}

func implPrefix(userID, category string) []byte {
	return []byte(prefixImpl + userID + ":" + category + ":")
}

func usagePrefix(userID, itemType string) []byte {
	return []byte(prefixUsage + userID + ":" + itemType + ":")
}

func searchPrefix(userID string) []byte {
	return []byte(prefixSearch + userID + ":")
}

// searchKey sorts newest first under the user's prefix.
func searchKey(userID string, at time.Time, eventID string) []byte {
	inverted := math.MaxInt64 - at.UnixNano()
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixSearch, userID, inverted, eventID))
}

func (s *BadgerStore) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = s.checkOpen(ctx); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("Ledger transaction conflict, retrying")
	}
	return err
}

// markEvent returns true when the event was already applied; otherwise it
// writes the marker inside txn.
func (s *BadgerStore) markEvent(txn *badger.Txn, kind, userID, eventID string) (bool, error) {
	key := eventKey(kind, userID, eventID)
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		return false, fmt.Errorf("read event marker: %w", err)
	}

	e := badger.NewEntry(key, []byte(s.now().UTC().Format(time.RFC3339Nano)))
	if s.cfg.EventRetention > 0 {
		e = e.WithTTL(s.cfg.EventRetention)
	}
	return false, txn.SetEntry(e)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	}
	return false, fmt.Errorf("get %s: %w", key, err)
}

func getJSON(txn *badger.Txn, key []byte, dst any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
	if err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// RecordUsage increments the usage counter once per event ID.
func (s *BadgerStore) RecordUsage(ctx context.Context, ev UsageEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindUsage, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, s.now)
	key := append(usagePrefix(ev.UserID, ev.ItemType), ev.ItemID...)

	err = s.update(ctx, func(txn *badger.Txn) error {
		res = WriteResult{}
		var prev UsageRecord
		found, err := getJSON(txn, key, &prev)
		if err != nil {
			return err
		}

		dup, err := s.markEvent(txn, KindUsage, ev.UserID, ev.EventID)
		if err != nil {
			return err
		}
		if dup {
			res.UseCount = prev.UseCount
			return nil
		}

		var prevPtr *UsageRecord
		if found {
			prevPtr = &prev
		}
		rec := applyUsage(prevPtr, ev)
		if err := setJSON(txn, key, rec); err != nil {
			return err
		}
		res = WriteResult{Applied: true, UseCount: rec.UseCount}
		return nil
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("record usage: %w", err)
	}
	return res, nil
}

// SaveFeedback applies a feedback event once per event ID and keeps the
// implemented index in step with the state.
func (s *BadgerStore) SaveFeedback(ctx context.Context, ev FeedbackEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindFeedback, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, s.now)

	err = s.update(ctx, func(txn *badger.Txn) error {
		res = WriteResult{}
		dup, err := s.markEvent(txn, KindFeedback, ev.UserID, ev.EventID)
		if err != nil {
			return err
		}
		pending, err := exists(txn, reinforceKey(ev.UserID, ev.ItemID))
		if err != nil {
			return err
		}
		if dup {
			res.ReinforcementPending = pending
			return nil
		}

		var prev RecommendationState
		found, err := getJSON(txn, stateKey(ev.UserID, ev.ItemID), &prev)
		if err != nil {
			return err
		}
		var prevPtr *RecommendationState
		if found {
			prevPtr = &prev
		}
		state, newly := applyFeedback(prevPtr, ev)
		if err := setJSON(txn, stateKey(ev.UserID, ev.ItemID), state); err != nil {
			return err
		}

		if found && prev.Category != state.Category {
			if err := txn.Delete(append(implPrefix(ev.UserID, prev.Category), ev.ItemID...)); err != nil {
				return err
			}
		}
		implKey := append(implPrefix(ev.UserID, state.Category), ev.ItemID...)
		if state.Implemented {
			err = txn.Set(implKey, nil)
		} else {
			err = txn.Delete(implKey)
		}
		if err != nil {
			return fmt.Errorf("update implemented index: %w", err)
		}
		if newly {
			if err := txn.Set(reinforceKey(ev.UserID, ev.ItemID), nil); err != nil {
				return fmt.Errorf("mark pending reinforcement: %w", err)
			}
		}
		res = WriteResult{Applied: true, NewlyImplemented: newly, ReinforcementPending: pending || newly}
		return nil
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("save feedback: %w", err)
	}
	return res, nil
}

// AckReinforcement clears the pending reinforcement marker.
func (s *BadgerStore) AckReinforcement(ctx context.Context, userID, itemID string) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(reinforceKey(userID, itemID))
	})
	if err != nil {
		return fmt.Errorf("ack reinforcement: %w", err)
	}
	return nil
}

// State returns the stored state for one user and item.
func (s *BadgerStore) State(ctx context.Context, userID, itemID string) (RecommendationState, bool, error) {
	if err := s.checkOpen(ctx); err != nil {
		return RecommendationState{}, false, err
	}
	var (
		state RecommendationState
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, stateKey(userID, itemID), &state)
		return err
	})
	if err != nil {
		return RecommendationState{}, false, fmt.Errorf("read state: %w", err)
	}
	return state, found, nil
}

// LogSearch stores a search and trims the user's history to the
// configured limit.
func (s *BadgerStore) LogSearch(ctx context.Context, ev SearchEvent) (res WriteResult, err error) {
	defer func() { metrics.RecordLedgerWrite(KindSearch, res.Applied, err) }()
	if err := ev.validate(); err != nil {
		return WriteResult{}, err
	}
	stamp(&ev.OccurredAt, s.now)

	err = s.update(ctx, func(txn *badger.Txn) error {
		res = WriteResult{}
		dup, err := s.markEvent(txn, KindSearch, ev.UserID, ev.EventID)
		if err != nil || dup {
			return err
		}
		entry := SearchEntry{
			EventID:     ev.EventID,
			Term:        ev.Term,
			Category:    ev.Category,
			ResultCount: ev.ResultCount,
			SearchedAt:  ev.OccurredAt,
		}
		if err := setJSON(txn, searchKey(ev.UserID, ev.OccurredAt, ev.EventID), entry); err != nil {
			return err
		}
		if err := s.trimSearches(txn, ev.UserID); err != nil {
			return err
		}
		res = WriteResult{Applied: true}
		return nil
	})
	if err != nil {
		return WriteResult{}, fmt.Errorf("log search: %w", err)
	}
	return res, nil
}

func (s *BadgerStore) trimSearches(txn *badger.Txn, userID string) error {
	if s.cfg.SearchHistoryLimit <= 0 {
		return nil
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var stale [][]byte
	prefix := searchPrefix(userID)
	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
		if n > s.cfg.SearchHistoryLimit {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
	}
	it.Close()

	for _, key := range stale {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("trim search history: %w", err)
		}
	}
	return nil
}

// RecentSearches returns the user's searches, newest first.
func (s *BadgerStore) RecentSearches(ctx context.Context, userID string, limit int) ([]SearchEntry, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	out := []SearchEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := searchPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry SearchEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("unmarshal search: %w", err)
			}
			out = append(out, entry)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read searches: %w", err)
	}
	return out, nil
}

// ImplementedItems returns the user's implemented item IDs in category,
// sorted by ID.
func (s *BadgerStore) ImplementedItems(ctx context.Context, userID, category string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerRead("implemented_items", time.Since(start)) }()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := implPrefix(userID, category)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read implemented items: %w", err)
	}
	return ids, nil
}

// UsageHistory returns the user's usage of itemType. limit <= 0 returns all.
func (s *BadgerStore) UsageHistory(ctx context.Context, userID, itemType string, limit int) ([]UsageRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerRead("usage_history", time.Since(start)) }()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	recs := []UsageRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanUsage(txn, usagePrefix(userID, itemType), func(rec UsageRecord) {
			recs = append(recs, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read usage history: %w", err)
	}
	sortUsage(recs)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Trending scans all usage records; there is one per user and item.
func (s *BadgerStore) Trending(ctx context.Context, itemType string, since time.Time, limit int) ([]TrendingItem, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanUsage(txn, []byte(prefixUsage), func(rec UsageRecord) {
			if rec.ItemType == itemType && !rec.LastUsed.Before(since) {
				counts[rec.ItemID]++
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read trending: %w", err)
	}
	return rankTrending(counts, itemType, limit), nil
}

func scanUsage(txn *badger.Txn, prefix []byte, visit func(UsageRecord)) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var rec UsageRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return fmt.Errorf("unmarshal usage %s: %w", strings.TrimPrefix(string(it.Item().Key()), prefixUsage), err)
		}
		visit(rec)
	}
	return nil
}

// RunGC reclaims value log space. ErrNoRewrite ends the loop.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(context.Background()); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database. Further calls fail with ErrClosed.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	s.logger.Info().Msg("Interaction ledger closed")
	return nil
}
