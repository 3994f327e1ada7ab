// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Index    IndexConfig    `koanf:"index"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// DatabaseConfig holds DuckDB catalog store settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use NumCPU
}

// LedgerConfig holds the BadgerDB interaction ledger settings.
type LedgerConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// EventRetention is how long processed event IDs are remembered for
	// idempotency. Redelivery of an event older than this is applied again.
	EventRetention time.Duration `koanf:"event_retention"`

	// SearchHistoryLimit caps stored searches per user.
	SearchHistoryLimit int `koanf:"search_history_limit"`

	// GCInterval is how often the value log is garbage collected.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// RankingConfig holds recommendation and suggestion ranking settings.
//
// Environment Variables:
//   - RANKING_SIMILARITY_WEIGHT: weight of embedding similarity (default: 0.7)
//   - RANKING_GRAPH_WEIGHT: weight of the one-hop graph score (default: 0.3)
//   - RANKING_CANDIDATE_K: nearest neighbours fetched per request (default: 20)
//   - RANKING_DEFAULT_LIMIT: results returned when no limit is given (default: 5)
//   - RANKING_SIMILARITY_THRESHOLD: trigram cutoff for suggestions (default: 0.3)
//   - RANKING_DEGRADED_GRAPH_OPTIONAL: serve similarity-only rankings when the graph is down
type RankingConfig struct {
	Weights             WeightsConfig  `koanf:"weights"`
	CandidateK          int            `koanf:"candidate_k"`
	DefaultLimit        int            `koanf:"default_limit"`
	MaxLimit            int            `koanf:"max_limit"`
	SimilarityThreshold float64        `koanf:"similarity_threshold"`
	Dimension           int            `koanf:"dimension"`
	MaxTermLength       int            `koanf:"max_term_length"`
	RequestTimeout      time.Duration  `koanf:"request_timeout"`
	Retry               RetryConfig    `koanf:"retry"`
	Breaker             BreakerConfig  `koanf:"breaker"`
	Degraded            DegradedConfig `koanf:"degraded"`
}

// WeightsConfig holds the linear blend weights.
type WeightsConfig struct {
	Similarity float64 `koanf:"similarity"`
	Graph      float64 `koanf:"graph"`
}

// RetryConfig bounds retries of upstream sub-fetches.
type RetryConfig struct {
	MaxAttempts     uint          `koanf:"max_attempts"`
	InitialInterval time.Duration `koanf:"initial_interval"`
	MaxInterval     time.Duration `koanf:"max_interval"`
}

// BreakerConfig configures the per-upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	HalfOpenRequests uint32        `koanf:"half_open_requests"`
}

// DegradedConfig switches on partial results.
type DegradedConfig struct {
	GraphOptional bool `koanf:"graph_optional"`
}

// IndexConfig tunes the per-category vector index.
type IndexConfig struct {
	ExactThreshold int   `koanf:"exact_threshold"`
	NumLists       int   `koanf:"num_lists"`
	SearchLists    int   `koanf:"search_lists"`
	Iterations     int   `koanf:"iterations"`
	Seed           int64 `koanf:"seed"`
}

// CatalogConfig controls catalog snapshot reloading.
type CatalogConfig struct {
	RefreshInterval   time.Duration `koanf:"refresh_interval"`
	ReloadOnStartup   bool          `koanf:"reload_on_startup"`
	ReloadMinInterval time.Duration `koanf:"reload_min_interval"`
}

// SecurityConfig holds HTTP exposure settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Load reads configuration from built-in defaults, an optional YAML file,
// and environment variables, in that order of precedence (lowest first).
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// ListenAddr returns host:port for the HTTP server.
func (s *ServerConfig) ListenAddr() string {
	return joinHostPort(s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s *ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
