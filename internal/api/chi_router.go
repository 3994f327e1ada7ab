// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/vitalis/internal/middleware"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware config uses the defaults.
func NewRouter(handler *Handler, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to every route, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/recommendations", router.handler.Recommendations)
				r.Post("/recommendations", router.handler.Recommendations)
				r.Post("/recommendations/daily", router.handler.DailyRecommendations)
				r.Get("/suggestions", router.handler.Suggestions)
				r.Post("/usage", router.handler.RecordUsage)
				r.Get("/usage", router.handler.UsageHistory)
				r.Post("/feedback", router.handler.SaveFeedback)
				r.Get("/feedback/{itemID}", router.handler.FeedbackState)
				r.Get("/searches", router.handler.RecentSearches)
			})

			r.Get("/suggestions/trending", router.handler.Trending)

			r.Get("/catalog/items/{itemID}/related", router.handler.RelatedItems)
			r.Get("/catalog/items/{itemID}/cluster", router.handler.ItemCluster)
			r.Get("/catalog/path", router.handler.ItemPath)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWrite())
			r.Post("/catalog/items", router.handler.UpsertItem)
			r.Post("/catalog/items/batch", router.handler.UpsertItems)
			r.Post("/catalog/edges", router.handler.UpsertEdge)
			r.Post("/catalog/foods", router.handler.UpsertFood)
			r.Post("/catalog/exercises", router.handler.UpsertExercise)
		})

		r.With(router.chiMiddleware.RateLimitReload()).Post("/catalog/reload", router.handler.ReloadCatalog)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}
