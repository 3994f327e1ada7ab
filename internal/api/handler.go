// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package api is the HTTP surface of the recommendation service: ranked
// recommendations, autocomplete suggestions, interaction writes, catalog
// curation and health checks, routed with chi.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/recommend"
)

// ReinforcementDelta is added to the outgoing edges of an item when a user
// first marks it implemented.
const ReinforcementDelta = 0.1

// Curator is the write side of the content catalog.
type Curator interface {
	UpsertItem(ctx context.Context, item recommend.RecommendationItem, dimension int) (bool, error)
	UpsertItems(ctx context.Context, items []recommend.RecommendationItem, dimension int) (int, error)
	UpsertEdge(ctx context.Context, edge recommend.GraphEdge) error
	UpsertFood(ctx context.Context, food recommend.FoodItem) error
	UpsertExercise(ctx context.Context, ex recommend.Exercise) error
	ReinforceEdges(ctx context.Context, sourceID string, delta float64) (int64, error)
}

// Reloader rebuilds the catalog snapshot on demand.
type Reloader interface {
	ReloadNow(ctx context.Context) (*catalog.Snapshot, error)
}

// ErrReloadThrottled is returned by a Reloader that refused a reload.
var ErrReloadThrottled = errors.New("catalog reload throttled")

// Handler serves every API endpoint.
type Handler struct {
	engine   *recommend.Engine
	catalog  *catalog.Store
	ledger   ledger.Store
	curator  Curator
	reloader Reloader

	startTime time.Time
	now       func() time.Time
}

// HandlerDeps collects the handler's collaborators.
type HandlerDeps struct {
	Engine  *recommend.Engine
	Catalog *catalog.Store
	Ledger  ledger.Store
	Curator Curator

	// Reloader is optional; without one reloads go straight to Catalog.
	Reloader Reloader
}

// NewHandler creates a handler.
func NewHandler(deps HandlerDeps) (*Handler, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("api: engine is required")
	case deps.Catalog == nil:
		return nil, errors.New("api: catalog store is required")
	case deps.Ledger == nil:
		return nil, errors.New("api: ledger is required")
	case deps.Curator == nil:
		return nil, errors.New("api: curator is required")
	}
	return &Handler{
		engine:    deps.Engine,
		catalog:   deps.Catalog,
		ledger:    deps.Ledger,
		curator:   deps.Curator,
		reloader:  deps.Reloader,
		startTime: time.Now(),
		now:       time.Now,
	}, nil
}
