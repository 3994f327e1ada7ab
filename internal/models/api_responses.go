// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package models holds the HTTP wire envelope shared by every API endpoint.
package models

import (
	"time"
)

// APIResponse is the standard response wrapper.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
//	{
//	  "status": "success",
//	  "data": {"items": [...]},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "query_time_ms": 4}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError is a machine-readable error.
//
// Codes in use: INVALID_INPUT, VALIDATION_ERROR, NOT_FOUND,
// UPSTREAM_UNAVAILABLE, TIMEOUT, RATE_LIMITED, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the readiness check.
type HealthStatus struct {
	Status          string         `json:"status"`
	CatalogLoaded   bool           `json:"catalog_loaded"`
	CatalogVersion  uint64         `json:"catalog_version"`
	CatalogLoadedAt *time.Time     `json:"catalog_loaded_at,omitempty"`
	ItemCounts      map[string]int `json:"item_counts,omitempty"`
	Uptime          string         `json:"uptime"`
}
