// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package config

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateRanking(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be one of development, staging, production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if !c.Ledger.InMemory && strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("LEDGER_PATH is required when LEDGER_IN_MEMORY=false")
	}
	if c.Ledger.EventRetention <= 0 {
		return fmt.Errorf("LEDGER_EVENT_RETENTION must be positive")
	}
	if c.Ledger.SearchHistoryLimit < 1 {
		return fmt.Errorf("LEDGER_SEARCH_HISTORY_LIMIT must be at least 1")
	}
	if c.Ledger.GCInterval <= 0 {
		return fmt.Errorf("LEDGER_GC_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateRanking() error {
	r := &c.Ranking
	if err := validateWeight("RANKING_SIMILARITY_WEIGHT", r.Weights.Similarity); err != nil {
		return err
	}
	if err := validateWeight("RANKING_GRAPH_WEIGHT", r.Weights.Graph); err != nil {
		return err
	}
	if r.Weights.Similarity == 0 && r.Weights.Graph == 0 {
		return fmt.Errorf("ranking weights must not both be zero")
	}
	if r.CandidateK < 1 || r.CandidateK > 20 {
		return fmt.Errorf("RANKING_CANDIDATE_K must be between 1 and 20, got %d", r.CandidateK)
	}
	if r.MaxLimit < 1 || r.MaxLimit > 20 {
		return fmt.Errorf("RANKING_MAX_LIMIT must be between 1 and 20, got %d", r.MaxLimit)
	}
	if r.DefaultLimit < 1 || r.DefaultLimit > r.MaxLimit {
		return fmt.Errorf("RANKING_DEFAULT_LIMIT must be between 1 and RANKING_MAX_LIMIT (%d), got %d", r.MaxLimit, r.DefaultLimit)
	}
	if r.SimilarityThreshold < 0 || r.SimilarityThreshold >= 1 {
		return fmt.Errorf("RANKING_SIMILARITY_THRESHOLD must be in [0, 1), got %v", r.SimilarityThreshold)
	}
	if r.Dimension < 1 {
		return fmt.Errorf("RANKING_DIMENSION must be positive")
	}
	if r.MaxTermLength < 1 {
		return fmt.Errorf("RANKING_MAX_TERM_LENGTH must be positive")
	}
	if r.RequestTimeout <= 0 {
		return fmt.Errorf("RANKING_REQUEST_TIMEOUT must be positive")
	}
	if r.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RANKING_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if r.Retry.InitialInterval <= 0 || r.Retry.MaxInterval < r.Retry.InitialInterval {
		return fmt.Errorf("ranking retry intervals must be positive with max >= initial")
	}
	if r.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("RANKING_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if r.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("RANKING_BREAKER_OPEN_TIMEOUT must be positive")
	}
	return nil
}

func validateWeight(name string, w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("%s must be a finite non-negative number, got %v", name, w)
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Index.ExactThreshold < 0 {
		return fmt.Errorf("INDEX_EXACT_THRESHOLD must be >= 0")
	}
	if c.Index.NumLists < 0 {
		return fmt.Errorf("INDEX_NUM_LISTS must be >= 0")
	}
	if c.Index.SearchLists < 1 {
		return fmt.Errorf("INDEX_SEARCH_LISTS must be at least 1")
	}
	if c.Index.Iterations < 1 {
		return fmt.Errorf("INDEX_ITERATIONS must be at least 1")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.RefreshInterval < 0 {
		return fmt.Errorf("CATALOG_REFRESH_INTERVAL must be >= 0 (0 disables periodic reload)")
	}
	if c.Catalog.ReloadMinInterval < 0 {
		return fmt.Errorf("CATALOG_RELOAD_MIN_INTERVAL must be >= 0")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQS must be at least 1")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Server.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
