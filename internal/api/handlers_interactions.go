// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/validation"
)

// IdempotencyKeyHeader carries a client-chosen event ID for writes.
const IdempotencyKeyHeader = "Idempotency-Key"

// eventID picks the event ID for a write: header, then body, then a new UUID.
func eventID(r *http.Request, fromBody string) string {
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		return key
	}
	if fromBody != "" {
		return fromBody
	}
	return uuid.New().String()
}

func (h *Handler) loadedSnapshot() (*catalog.Snapshot, error) {
	snap := h.catalog.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("%w: catalog not loaded", recommend.ErrUpstreamUnavailable)
	}
	return snap, nil
}

// UsageRequest records that a user picked a food or exercise. Food and
// exercise IDs are separate namespaces, so ItemType is required.
type UsageRequest struct {
	EventID    string    `json:"event_id" validate:"omitempty,max=128"`
	ItemID     string    `json:"item_id" validate:"required,max=128"`
	ItemType   string    `json:"item_type" validate:"required,oneof=food exercise"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WriteResponse reports the outcome of an idempotent write.
type WriteResponse struct {
	EventID string `json:"event_id"`
	ledger.WriteResult
	ReinforcedEdges int64 `json:"reinforced_edges,omitempty"`
}

func writeStatus(res ledger.WriteResult) int {
	if res.Applied {
		return http.StatusCreated
	}
	return http.StatusOK
}

// RecordUsage handles POST /api/v1/users/{userID}/usage.
//
// @Summary Record a food or exercise selection
// @Tags Interactions
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body UsageRequest true "Usage event"
// @Success 201 {object} models.APIResponse{data=WriteResponse}
// @Success 200 {object} models.APIResponse{data=WriteResponse} "Duplicate event ID"
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /users/{userID}/usage [post]
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req UsageRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	snap, err := h.loadedSnapshot()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	item, ok := snap.Searchable(req.ItemType, req.ItemID)
	if !ok {
		respondServiceError(w, r, fmt.Errorf("%w: %s %q", recommend.ErrNotFound, req.ItemType, req.ItemID))
		return
	}

	id := eventID(r, req.EventID)
	res, err := h.ledger.RecordUsage(r.Context(), ledger.UsageEvent{
		EventID:    id,
		UserID:     chi.URLParam(r, "userID"),
		ItemID:     item.ItemID(),
		ItemType:   item.ItemCategory(),
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, writeStatus(res), WriteResponse{EventID: id, WriteResult: res}, start)
}

// FeedbackRequest updates a user's state for one recommendation item.
type FeedbackRequest struct {
	EventID        string    `json:"event_id" validate:"omitempty,max=128"`
	ItemID         string    `json:"item_id" validate:"required,max=128"`
	Implemented    *bool     `json:"implemented,omitempty"`
	RelevanceScore *float64  `json:"relevance_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	Feedback       string    `json:"feedback,omitempty" validate:"max=2000"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// SaveFeedback handles POST /api/v1/users/{userID}/feedback. When the write
// newly marks the item implemented, its outgoing edges are reinforced once.
//
// @Summary Save recommendation feedback
// @Tags Interactions
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body FeedbackRequest true "Feedback event"
// @Success 201 {object} models.APIResponse{data=WriteResponse}
// @Success 200 {object} models.APIResponse{data=WriteResponse} "Duplicate event ID"
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /users/{userID}/feedback [post]
func (h *Handler) SaveFeedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req FeedbackRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	snap, err := h.loadedSnapshot()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	item, ok := snap.Item(req.ItemID)
	if !ok {
		respondServiceError(w, r, fmt.Errorf("%w: item %q", recommend.ErrNotFound, req.ItemID))
		return
	}

	id := eventID(r, req.EventID)
	userID := chi.URLParam(r, "userID")
	res, err := h.ledger.SaveFeedback(r.Context(), ledger.FeedbackEvent{
		EventID:        id,
		UserID:         userID,
		ItemID:         item.ID,
		Category:       item.Category,
		Implemented:    req.Implemented,
		RelevanceScore: req.RelevanceScore,
		Feedback:       req.Feedback,
		OccurredAt:     req.OccurredAt,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := WriteResponse{EventID: id, WriteResult: res}
	if res.ReinforcementPending {
		out.ReinforcedEdges = h.reinforce(r, userID, item.ID)
	}
	respondSuccess(w, r, writeStatus(res), out, start)
}

// reinforce applies the pending edge reinforcement for a newly implemented
// item. On failure the ledger keeps it pending, and the next feedback write
// for the item, including a retry with the same event ID, tries again.
func (h *Handler) reinforce(r *http.Request, userID, itemID string) int64 {
	log := logging.Ctx(r.Context())
	n, err := h.curator.ReinforceEdges(r.Context(), itemID, ReinforcementDelta)
	if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("Edge reinforcement failed; left pending")
		return 0
	}
	if err := h.ledger.AckReinforcement(r.Context(), userID, itemID); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("Failed to clear pending reinforcement")
	}
	return n
}

// FeedbackState handles GET /api/v1/users/{userID}/feedback/{itemID}.
//
// @Tags Interactions
// @Produce json
// @Param userID path string true "User ID"
// @Param itemID path string true "Item ID"
// @Success 200 {object} models.APIResponse{data=ledger.RecommendationState}
// @Failure 404 {object} models.APIResponse
// @Router /users/{userID}/feedback/{itemID} [get]
func (h *Handler) FeedbackState(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, itemID := chi.URLParam(r, "userID"), chi.URLParam(r, "itemID")
	state, ok, err := h.ledger.State(r.Context(), userID, itemID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if !ok {
		respondServiceError(w, r, fmt.Errorf("%w: no feedback for item %q", recommend.ErrNotFound, itemID))
		return
	}
	respondSuccess(w, r, http.StatusOK, state, start)
}

// RecentSearches handles GET /api/v1/users/{userID}/searches?limit=.
//
// @Tags Interactions
// @Produce json
// @Param userID path string true "User ID"
// @Param limit query int false "Maximum searches"
// @Success 200 {object} models.APIResponse
// @Router /users/{userID}/searches [get]
func (h *Handler) RecentSearches(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, err := h.listLimit(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	searches, err := h.ledger.RecentSearches(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if searches == nil {
		searches = []ledger.SearchEntry{}
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"searches": searches,
		"count":    len(searches),
	}, start)
}

// UsageEntry is one frequently used item with its resolved name.
type UsageEntry struct {
	ItemID   string    `json:"item_id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	UseCount int64     `json:"use_count"`
	LastUsed time.Time `json:"last_used"`
}

// UsageHistory handles GET /api/v1/users/{userID}/usage?category=&limit=.
// Items are ordered by use count, then most recent use.
//
// @Summary Most used foods or exercises
// @Tags Interactions
// @Produce json
// @Param userID path string true "User ID"
// @Param category query string true "food or exercise"
// @Param limit query int false "Maximum items"
// @Success 200 {object} models.APIResponse "data holds category, items and count"
// @Failure 400 {object} models.APIResponse
// @Router /users/{userID}/usage [get]
func (h *Handler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	category, ok := searchableCategory(w, r)
	if !ok {
		return
	}
	limit, err := h.listLimit(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	snap, err := h.loadedSnapshot()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// Over-fetch so items that left the catalog do not shorten the list.
	records, err := h.ledger.UsageHistory(r.Context(), chi.URLParam(r, "userID"), category, limit*2)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	items := make([]UsageEntry, 0, limit)
	for _, rec := range records {
		item, ok := snap.Searchable(category, rec.ItemID)
		if !ok {
			continue
		}
		items = append(items, UsageEntry{
			ItemID:   rec.ItemID,
			Name:     item.ItemName(),
			Category: category,
			UseCount: rec.UseCount,
			LastUsed: rec.LastUsed,
		})
		if len(items) == limit {
			break
		}
	}
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"category": category,
		"items":    items,
		"count":    len(items),
	}, start)
}
