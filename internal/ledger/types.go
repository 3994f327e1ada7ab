// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/vitalis/internal/recommend"
)

var (
	// ErrInvalidEvent is returned for malformed writes. It matches
	// recommend.ErrInvalidInput.
	ErrInvalidEvent = fmt.Errorf("ledger event: %w", recommend.ErrInvalidInput)

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ledger closed")
)

// Write kinds, used in event keys and metrics.
const (
	KindUsage    = "usage"
	KindFeedback = "feedback"
	KindSearch   = "search"
)

// UsageRecord is a user's aggregated usage of one searchable item.
type UsageRecord = recommend.UsageRecord

// RecommendationState is a user's standing with one recommendation item.
// Only Implemented is read by the ranker.
type RecommendationState struct {
	UserID         string    `json:"user_id"`
	ItemID         string    `json:"item_id"`
	Category       string    `json:"category"`
	RelevanceScore *float64  `json:"relevance_score,omitempty"`
	Implemented    bool      `json:"implemented"`
	Feedback       string    `json:"feedback,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UsageEvent records one selection of a searchable item.
type UsageEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	ItemID     string    `json:"item_id"`
	ItemType   string    `json:"item_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FeedbackEvent updates a RecommendationState. Nil fields leave the stored
// value unchanged; an empty Feedback keeps the previous text.
type FeedbackEvent struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	ItemID         string    `json:"item_id"`
	Category       string    `json:"category"`
	Implemented    *bool     `json:"implemented,omitempty"`
	RelevanceScore *float64  `json:"relevance_score,omitempty"`
	Feedback       string    `json:"feedback,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// SearchEvent records one search submitted by a user.
type SearchEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	Term        string    `json:"term"`
	Category    string    `json:"category"`
	ResultCount int       `json:"result_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// SearchEntry is a stored search.
type SearchEntry struct {
	EventID     string    `json:"event_id"`
	Term        string    `json:"term"`
	Category    string    `json:"category"`
	ResultCount int       `json:"result_count"`
	SearchedAt  time.Time `json:"searched_at"`
}

// TrendingItem counts distinct recent users of one item.
type TrendingItem struct {
	ItemID   string `json:"item_id"`
	ItemType string `json:"item_type"`
	Users    int    `json:"users"`
}

// WriteResult reports the effect of a write.
type WriteResult struct {
	// Applied is false when the event ID was already processed.
	Applied bool `json:"applied"`

	// UseCount is the usage counter after a usage write.
	UseCount int64 `json:"use_count,omitempty"`

	// NewlyImplemented is set when a feedback write flipped Implemented on.
	NewlyImplemented bool `json:"newly_implemented,omitempty"`

	// ReinforcementPending is set after a feedback write, duplicates
	// included, while the item's first implementation has not been
	// acknowledged with AckReinforcement.
	ReinforcementPending bool `json:"-"`
}

// Store is the interaction ledger.
type Store interface {
	recommend.Interactions

	RecordUsage(ctx context.Context, ev UsageEvent) (WriteResult, error)
	SaveFeedback(ctx context.Context, ev FeedbackEvent) (WriteResult, error)
	State(ctx context.Context, userID, itemID string) (RecommendationState, bool, error)

	// AckReinforcement clears the pending reinforcement for one user and
	// item once the catalog edges were updated.
	AckReinforcement(ctx context.Context, userID, itemID string) error

	LogSearch(ctx context.Context, ev SearchEvent) (WriteResult, error)
	RecentSearches(ctx context.Context, userID string, limit int) ([]SearchEntry, error)

	// Trending counts, per item of itemType, the users whose last use of it
	// is at or after since. Ordered by users desc, item ID.
	Trending(ctx context.Context, itemType string, since time.Time, limit int) ([]TrendingItem, error)

	Close() error
}

func checkID(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidEvent, field)
	}
	if strings.ContainsRune(v, ':') {
		return fmt.Errorf("%w: %s must not contain ':'", ErrInvalidEvent, field)
	}
	return nil
}

func checkIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := checkID(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (ev UsageEvent) validate() error {
	return checkIDs("event_id", ev.EventID, "user_id", ev.UserID, "item_id", ev.ItemID, "item_type", ev.ItemType)
}

func (ev FeedbackEvent) validate() error {
	if err := checkIDs("event_id", ev.EventID, "user_id", ev.UserID, "item_id", ev.ItemID, "category", ev.Category); err != nil {
		return err
	}
	if ev.Implemented == nil && ev.RelevanceScore == nil && ev.Feedback == "" {
		return fmt.Errorf("%w: feedback event changes nothing", ErrInvalidEvent)
	}
	return nil
}

func (ev SearchEvent) validate() error {
	if err := checkIDs("event_id", ev.EventID, "user_id", ev.UserID); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Term) == "" {
		return fmt.Errorf("%w: term is required", ErrInvalidEvent)
	}
	return nil
}

// applyUsage folds one usage event into the existing record.
func applyUsage(prev *UsageRecord, ev UsageEvent) UsageRecord {
	rec := UsageRecord{UserID: ev.UserID, ItemID: ev.ItemID, ItemType: ev.ItemType}
	if prev != nil {
		rec = *prev
	}
	rec.UseCount++
	if ev.OccurredAt.After(rec.LastUsed) {
		rec.LastUsed = ev.OccurredAt
	}
	return rec
}

// applyFeedback folds one feedback event into the existing state.
func applyFeedback(prev *RecommendationState, ev FeedbackEvent) (RecommendationState, bool) {
	state := RecommendationState{UserID: ev.UserID, ItemID: ev.ItemID}
	if prev != nil {
		state = *prev
	}
	wasImplemented := state.Implemented

	state.Category = ev.Category
	if ev.Implemented != nil {
		state.Implemented = *ev.Implemented
	}
	if ev.RelevanceScore != nil {
		score := *ev.RelevanceScore
		state.RelevanceScore = &score
	}
	if ev.Feedback != "" {
		state.Feedback = ev.Feedback
	}
	state.UpdatedAt = ev.OccurredAt
	return state, !wasImplemented && state.Implemented
}

func sortUsage(recs []UsageRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].UseCount != recs[j].UseCount {
			return recs[i].UseCount > recs[j].UseCount
		}
		if !recs[i].LastUsed.Equal(recs[j].LastUsed) {
			return recs[i].LastUsed.After(recs[j].LastUsed)
		}
		return recs[i].ItemID < recs[j].ItemID
	})
}

func rankTrending(counts map[string]int, itemType string, limit int) []TrendingItem {
	out := make([]TrendingItem, 0, len(counts))
	for id, n := range counts {
		out = append(out, TrendingItem{ItemID: id, ItemType: itemType, Users: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Users != out[j].Users {
			return out[i].Users > out[j].Users
		}
		return out[i].ItemID < out[j].ItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func stamp(t *time.Time, now func() time.Time) {
	if t.IsZero() {
		*t = now()
	}
	*t = t.UTC()
}
