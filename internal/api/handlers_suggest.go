// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/recommend"
)

// Trending window bounds, in days.
const (
	defaultTrendingDays = 7
	maxTrendingDays     = 90
)

// Suggestions handles GET /api/v1/users/{userID}/suggestions?q=&category=&limit=.
// A successful search is appended to the user's search history.
//
// @Summary Autocomplete suggestions
// @Description Previously used foods or exercises come first, ordered by use count,
// @Description followed by catalog matches ordered by name similarity.
// @Tags Suggestions
// @Produce json
// @Param userID path string true "User ID"
// @Param q query string true "Search term"
// @Param category query string true "food or exercise"
// @Param limit query int false "Maximum suggestions"
// @Success 200 {object} models.APIResponse{data=recommend.SuggestResponse}
// @Failure 400 {object} models.APIResponse
// @Failure 504 {object} models.APIResponse
// @Router /users/{userID}/suggestions [get]
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	req := recommend.SuggestRequest{
		UserID:   chi.URLParam(r, "userID"),
		Term:     r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	}

	resp, err := h.engine.Suggest(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if _, err := h.ledger.LogSearch(r.Context(), ledger.SearchEvent{
		EventID:     uuid.New().String(),
		UserID:      req.UserID,
		Term:        req.Term,
		Category:    req.Category,
		ResultCount: len(resp.Suggestions),
		OccurredAt:  h.now(),
	}); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to record search history")
	}

	respondSuccess(w, r, http.StatusOK, resp, start)
}

// TrendingEntry is a trending searchable item with its resolved name.
type TrendingEntry struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Users    int    `json:"users"`
}

// TrendingResponse lists trending items, most users first.
type TrendingResponse struct {
	Category string          `json:"category"`
	Days     int             `json:"days"`
	Items    []TrendingEntry `json:"items"`
}

// Trending handles GET /api/v1/suggestions/trending?category=&days=&limit=.
//
// @Summary Trending items
// @Tags Suggestions
// @Produce json
// @Param category query string true "food or exercise"
// @Param days query int false "Lookback window in days"
// @Param limit query int false "Maximum items"
// @Success 200 {object} models.APIResponse{data=TrendingResponse}
// @Router /suggestions/trending [get]
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	category, ok := searchableCategory(w, r)
	if !ok {
		return
	}
	days, err := intParam(r, "days", defaultTrendingDays)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if days < 1 || days > maxTrendingDays {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput,
			fmt.Sprintf("days must be between 1 and %d", maxTrendingDays), nil)
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

	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)
	// Over-fetch so items missing from the snapshot do not shorten the list.
	trending, err := h.ledger.Trending(r.Context(), category, since, limit*2)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := TrendingResponse{Category: category, Days: days, Items: make([]TrendingEntry, 0, limit)}
	for _, t := range trending {
		item, ok := snap.Searchable(category, t.ItemID)
		if !ok {
			continue
		}
		out.Items = append(out.Items, TrendingEntry{ItemID: t.ItemID, Name: item.ItemName(), Category: category, Users: t.Users})
		if len(out.Items) == limit {
			break
		}
	}
	respondSuccess(w, r, http.StatusOK, out, start)
}

// searchableCategory reads the category query parameter, which must name a
// searchable kind. It writes a 400 and returns false otherwise.
func searchableCategory(w http.ResponseWriter, r *http.Request) (string, bool) {
	category := r.URL.Query().Get("category")
	if category != recommend.CategoryFood && category != recommend.CategoryExercise {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput,
			fmt.Sprintf("category must be %q or %q", recommend.CategoryFood, recommend.CategoryExercise), nil)
		return "", false
	}
	return category, true
}

// listLimit parses limit for list endpoints: default DefaultLimit, capped at
// MaxLimit, negative rejected.
func (h *Handler) listLimit(r *http.Request) (int, error) {
	cfg := h.engine.Config()
	limit, err := intParam(r, "limit", cfg.DefaultLimit)
	if err != nil {
		return 0, err
	}
	switch {
	case limit < 0:
		return 0, fmt.Errorf("%w: limit must be >= 0", recommend.ErrInvalidInput)
	case limit == 0:
		return cfg.DefaultLimit, nil
	case limit > cfg.MaxLimit:
		return cfg.MaxLimit, nil
	}
	return limit, nil
}
