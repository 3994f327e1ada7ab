// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/validation"
)

// DailyCategories are ranked by a daily request that supplies one shared
// query vector.
var DailyCategories = []string{"nutrition", "workout", "sleep"}

// DefaultClusterMinWeight is the edge weight a graph-only neighbour needs to
// join an item cluster.
const DefaultClusterMinWeight = 0.5

// RecommendationsRequest is the body of a recommendations request. Category
// and limit may also be given as query parameters.
type RecommendationsRequest struct {
	Category    string    `json:"category"`
	QueryVector []float32 `json:"query_vector" validate:"required,finite"`
	Limit       int       `json:"limit" validate:"gte=0"`
}

// Recommendations handles GET and POST /api/v1/users/{userID}/recommendations.
//
// @Summary Rank recommendations
// @Description Ranks catalog items of one category by blending embedding similarity
// @Description with graph proximity to items the user has implemented.
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body RecommendationsRequest true "Query vector and category"
// @Param category query string false "Category when not set in the body"
// @Param limit query int false "Maximum items when not set in the body"
// @Success 200 {object} models.APIResponse{data=recommend.RecommendResponse}
// @Failure 400 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Failure 504 {object} models.APIResponse
// @Router /users/{userID}/recommendations [get]
// @Router /users/{userID}/recommendations [post]
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RecommendationsRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if req.Category == "" {
		req.Category = r.URL.Query().Get("category")
	}
	if req.Limit == 0 {
		limit, err := intParam(r, "limit", 0)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		req.Limit = limit
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.RecommendRequest{
		UserID:   chi.URLParam(r, "userID"),
		Category: req.Category,
		Query:    req.QueryVector,
		Limit:    req.Limit,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, resp, start)
}

// DailyRecommendationsRequest supplies either one vector for every default
// category or one vector per category.
type DailyRecommendationsRequest struct {
	QueryVector  []float32            `json:"query_vector,omitempty" validate:"omitempty,finite"`
	QueryVectors map[string][]float32 `json:"query_vectors,omitempty"`
	Limit        int                  `json:"limit" validate:"gte=0"`
}

// DailyRecommendationsResponse holds one ranking per category.
type DailyRecommendationsResponse struct {
	Categories map[string]*recommend.RecommendResponse `json:"categories"`
}

// DailyRecommendations handles POST /api/v1/users/{userID}/recommendations/daily.
// Categories are ranked concurrently; any failure fails the whole request.
//
// @Summary Daily recommendations across categories
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param request body DailyRecommendationsRequest true "Shared or per-category query vectors"
// @Success 200 {object} models.APIResponse{data=DailyRecommendationsResponse}
// @Failure 400 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /users/{userID}/recommendations/daily [post]
func (h *Handler) DailyRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req DailyRecommendationsRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	queries := req.QueryVectors
	if len(queries) == 0 {
		if len(req.QueryVector) == 0 {
			respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput,
				"query_vector or query_vectors is required", nil)
			return
		}
		queries = make(map[string][]float32, len(DailyCategories))
		for _, c := range DailyCategories {
			queries[c] = req.QueryVector
		}
	}

	categories := make([]string, 0, len(queries))
	for c := range queries {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	userID := chi.URLParam(r, "userID")
	out := DailyRecommendationsResponse{Categories: make(map[string]*recommend.RecommendResponse, len(queries))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(r.Context())
	for _, category := range categories {
		g.Go(func() error {
			resp, err := h.engine.Recommend(gctx, recommend.RecommendRequest{
				UserID:   userID,
				Category: category,
				Query:    queries[category],
				Limit:    req.Limit,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			out.Categories[category] = resp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Debug().Int("categories", len(categories)).Msg("Daily recommendations served")
	respondSuccess(w, r, http.StatusOK, out, start)
}

// ItemCluster handles GET /api/v1/catalog/items/{itemID}/cluster.
//
// @Summary Item neighbourhood
// @Tags Catalog
// @Produce json
// @Param itemID path string true "Item ID"
// @Param min_weight query number false "Minimum edge weight"
// @Param limit query int false "Maximum related items"
// @Success 200 {object} models.APIResponse{data=recommend.ClusterResponse}
// @Failure 404 {object} models.APIResponse
// @Router /catalog/items/{itemID}/cluster [get]
func (h *Handler) ItemCluster(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	minWeight, err := floatParam(r, "min_weight", DefaultClusterMinWeight)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp, err := h.engine.Cluster(r.Context(), recommend.ClusterRequest{
		ItemID:    chi.URLParam(r, "itemID"),
		MinWeight: minWeight,
		Limit:     limit,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, resp, start)
}
