// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/recommend/graph"
	"github.com/tomtom215/vitalis/internal/validation"
)

// CatalogItemRequest creates or updates a recommendation item.
type CatalogItemRequest struct {
	ID        string         `json:"id" validate:"required,max=128"`
	Category  string         `json:"category" validate:"required,category"`
	Title     string         `json:"title" validate:"required,max=512"`
	Content   string         `json:"content" validate:"max=20000"`
	Tags      []string       `json:"tags" validate:"max=64,dive,max=64"`
	Embedding []float32      `json:"embedding" validate:"required,finite"`
	Metadata  map[string]any `json:"metadata"`
}

// UpsertItem handles POST /api/v1/catalog/items.
//
// @Summary Create or replace a catalog item
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body CatalogItemRequest true "Item with embedding"
// @Success 201 {object} models.APIResponse{data=recommend.RecommendationItem}
// @Success 200 {object} models.APIResponse{data=recommend.RecommendationItem}
// @Failure 400 {object} models.APIResponse
// @Router /catalog/items [post]
func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CatalogItemRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	item := req.toItem()
	created, err := h.curator.UpsertItem(r.Context(), item, h.engine.Config().Dimension)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondSuccess(w, r, status, map[string]interface{}{"id": item.ID, "created": created}, start)
}

// CatalogItemBatchRequest creates or updates several items at once. Each item
// carries a full embedding and the batch must fit in maxBodyBytes, hence the
// cap of 50.
type CatalogItemBatchRequest struct {
	Items []CatalogItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

func (req *CatalogItemRequest) toItem() recommend.RecommendationItem {
	return recommend.RecommendationItem{
		ID:        req.ID,
		Category:  req.Category,
		Title:     req.Title,
		Content:   req.Content,
		Tags:      req.Tags,
		Embedding: req.Embedding,
		Metadata:  req.Metadata,
	}
}

// UpsertItems handles POST /api/v1/catalog/items/batch. The batch is written
// in one transaction; any invalid item rejects all of them.
//
// @Summary Create or replace up to 50 catalog items
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body CatalogItemBatchRequest true "Items with embeddings"
// @Success 201 {object} models.APIResponse
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /catalog/items/batch [post]
func (h *Handler) UpsertItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CatalogItemBatchRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	items := make([]recommend.RecommendationItem, len(req.Items))
	for i := range req.Items {
		items[i] = req.Items[i].toItem()
	}
	created, err := h.curator.UpsertItems(r.Context(), items, h.engine.Config().Dimension)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created > 0 {
		status = http.StatusCreated
	}
	respondSuccess(w, r, status, map[string]interface{}{"count": len(items), "created": created}, start)
}

// CatalogEdgeRequest creates or replaces a typed edge. Weight defaults to
// recommend.DefaultEdgeWeight.
type CatalogEdgeRequest struct {
	SourceID string         `json:"source_id" validate:"required,max=128"`
	TargetID string         `json:"target_id" validate:"required,max=128"`
	Type     string         `json:"type" validate:"required,max=64"`
	Weight   *float64       `json:"weight,omitempty" validate:"omitempty,gte=0"`
	Metadata map[string]any `json:"metadata"`
}

// UpsertEdge handles POST /api/v1/catalog/edges.
//
// @Summary Create or replace a graph edge
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body CatalogEdgeRequest true "Edge"
// @Success 201 {object} models.APIResponse{data=recommend.GraphEdge}
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse "Unknown endpoint item"
// @Router /catalog/edges [post]
func (h *Handler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CatalogEdgeRequest
	if !requireJSONBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	edge := recommend.GraphEdge{
		SourceID: req.SourceID,
		TargetID: req.TargetID,
		Type:     req.Type,
		Weight:   recommend.DefaultEdgeWeight,
		Metadata: req.Metadata,
	}
	if req.Weight != nil {
		edge.Weight = *req.Weight
	}
	if err := h.curator.UpsertEdge(r.Context(), edge); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, edge, start)
}

// UpsertFood handles POST /api/v1/catalog/foods.
//
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body recommend.FoodItem true "Food"
// @Success 201 {object} models.APIResponse{data=recommend.FoodItem}
// @Router /catalog/foods [post]
func (h *Handler) UpsertFood(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var food recommend.FoodItem
	if !requireJSONBody(w, r, &food) {
		return
	}
	if err := h.curator.UpsertFood(r.Context(), food); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, food, start)
}

// UpsertExercise handles POST /api/v1/catalog/exercises.
//
// @Tags Catalog
// @Accept json
// @Produce json
// @Param request body recommend.Exercise true "Exercise"
// @Success 201 {object} models.APIResponse{data=recommend.Exercise}
// @Router /catalog/exercises [post]
func (h *Handler) UpsertExercise(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var ex recommend.Exercise
	if !requireJSONBody(w, r, &ex) {
		return
	}
	if err := h.curator.UpsertExercise(r.Context(), ex); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, ex, start)
}

// ReloadResponse describes a freshly published snapshot.
type ReloadResponse struct {
	Version     uint64         `json:"version"`
	LoadedAt    time.Time      `json:"loaded_at"`
	ItemCounts  map[string]int `json:"item_counts"`
	Edges       int            `json:"edges"`
	Searchables int            `json:"searchables"`
	Dropped     int            `json:"dropped"`
}

func reloadResponse(snap *catalog.Snapshot) ReloadResponse {
	return ReloadResponse{
		Version:     snap.Version(),
		LoadedAt:    snap.LoadedAt(),
		ItemCounts:  snap.ItemCounts(),
		Edges:       snap.EdgeCount(),
		Searchables: snap.SearchableCount(),
		Dropped:     snap.Dropped(),
	}
}

// ReloadCatalog handles POST /api/v1/catalog/reload.
//
// @Summary Reload the catalog snapshot
// @Tags Catalog
// @Produce json
// @Success 200 {object} models.APIResponse{data=ReloadResponse}
// @Failure 429 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /catalog/reload [post]
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var (
		snap *catalog.Snapshot
		err  error
	)
	if h.reloader != nil {
		snap, err = h.reloader.ReloadNow(r.Context())
	} else {
		snap, err = h.catalog.Reload(r.Context())
	}
	switch {
	case errors.Is(err, ErrReloadThrottled), errors.Is(err, catalog.ErrReloadInProgress):
		respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error(), nil)
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("On-demand catalog reload failed")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "Catalog reload failed", nil)
		return
	}
	respondSuccess(w, r, http.StatusOK, reloadResponse(snap), start)
}

// RelatedItems handles GET /api/v1/catalog/items/{itemID}/related?type=&limit=.
//
// @Tags Catalog
// @Produce json
// @Param itemID path string true "Item ID"
// @Param type query string false "Edge type"
// @Param limit query int false "Maximum edges"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /catalog/items/{itemID}/related [get]
func (h *Handler) RelatedItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

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
	itemID := chi.URLParam(r, "itemID")
	if _, ok := snap.Item(itemID); !ok {
		respondServiceError(w, r, fmt.Errorf("%w: item %q", recommend.ErrNotFound, itemID))
		return
	}

	edges := snap.Related(itemID, r.URL.Query().Get("type"), limit)
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"item_id": itemID,
		"related": edges,
		"count":   len(edges),
	}, start)
}

// ItemPath handles GET /api/v1/catalog/path?from=&to=&max_depth=.
//
// @Summary Shortest path between two items
// @Tags Catalog
// @Produce json
// @Param from query string true "Source item ID"
// @Param to query string true "Target item ID"
// @Param max_depth query int false "Maximum hops"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /catalog/path [get]
func (h *Handler) ItemPath(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput, "from and to are required", nil)
		return
	}
	maxDepth, err := intParam(r, "max_depth", graph.DefaultMaxPathDepth)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if maxDepth < 1 || maxDepth > graph.DefaultMaxPathDepth {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidInput,
			fmt.Sprintf("max_depth must be between 1 and %d", graph.DefaultMaxPathDepth), nil)
		return
	}

	snap, err := h.loadedSnapshot()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	for _, id := range []string{from, to} {
		if _, ok := snap.Item(id); !ok {
			respondServiceError(w, r, fmt.Errorf("%w: item %q", recommend.ErrNotFound, id))
			return
		}
	}

	path, ok := snap.ShortestPath(from, to, maxDepth)
	if !ok {
		respondServiceError(w, r, fmt.Errorf("%w: no path from %q to %q within %d hops", recommend.ErrNotFound, from, to, maxDepth))
		return
	}
	respondSuccess(w, r, http.StatusOK, path, start)
}
