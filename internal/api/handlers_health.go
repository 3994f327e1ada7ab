// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/vitalis/internal/models"
)

// HealthLive handles GET /api/v1/health/live. It always succeeds while the
// process is serving.
//
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus}
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "alive"}, start)
}

// HealthReady handles GET /api/v1/health/ready. It reports 503 until the
// first catalog snapshot is published.
//
// @Summary Readiness check
// @Description Reports 503 until the first catalog snapshot has loaded.
// @Tags Health
// @Produce json
// @Success 200 {object} models.APIResponse{data=models.HealthStatus}
// @Failure 503 {object} models.APIResponse{data=models.HealthStatus}
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	status := models.HealthStatus{
		Status: "ready",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	snap := h.catalog.Snapshot()
	if snap == nil {
		status.Status = "not_ready"
		respondSuccess(w, r, http.StatusServiceUnavailable, status, start)
		return
	}

	loadedAt := snap.LoadedAt()
	status.CatalogLoaded = true
	status.CatalogVersion = snap.Version()
	status.CatalogLoadedAt = &loadedAt
	status.ItemCounts = snap.ItemCounts()
	respondSuccess(w, r, http.StatusOK, status, start)
}
