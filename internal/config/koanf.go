// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vitalis/config.yaml",
	"/etc/vitalis/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8085,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/vitalis.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Ledger: LedgerConfig{
			Path:               "/data/ledger",
			InMemory:           false,
			EventRetention:     7 * 24 * time.Hour,
			SearchHistoryLimit: 50,
			GCInterval:         10 * time.Minute,
		},
		Ranking: RankingConfig{
			Weights: WeightsConfig{
				Similarity: 0.7,
				Graph:      0.3,
			},
			CandidateK:          20,
			DefaultLimit:        5,
			MaxLimit:            20,
			SimilarityThreshold: 0.3,
			Dimension:           1536,
			MaxTermLength:       256,
			RequestTimeout:      3 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 50 * time.Millisecond,
				MaxInterval:     500 * time.Millisecond,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
				HalfOpenRequests: 1,
			},
			Degraded: DegradedConfig{
				GraphOptional: false,
			},
		},
		Index: IndexConfig{
			ExactThreshold: 2000,
			NumLists:       0, // 0 = sqrt(n)
			SearchLists:    8,
			Iterations:     10,
			Seed:           42,
		},
		Catalog: CatalogConfig{
			RefreshInterval:   5 * time.Minute,
			ReloadOnStartup:   true,
			ReloadMinInterval: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: whitelisted names from envTransformFunc
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	// Server
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Ledger
	"ledger_path":                 "ledger.path",
	"ledger_in_memory":            "ledger.in_memory",
	"ledger_event_retention":      "ledger.event_retention",
	"ledger_search_history_limit": "ledger.search_history_limit",
	"ledger_gc_interval":          "ledger.gc_interval",

	// Ranking
	"ranking_similarity_weight":         "ranking.weights.similarity",
	"ranking_graph_weight":              "ranking.weights.graph",
	"ranking_candidate_k":               "ranking.candidate_k",
	"ranking_default_limit":             "ranking.default_limit",
	"ranking_max_limit":                 "ranking.max_limit",
	"ranking_similarity_threshold":      "ranking.similarity_threshold",
	"ranking_dimension":                 "ranking.dimension",
	"ranking_max_term_length":           "ranking.max_term_length",
	"ranking_request_timeout":           "ranking.request_timeout",
	"ranking_retry_max_attempts":        "ranking.retry.max_attempts",
	"ranking_retry_initial_interval":    "ranking.retry.initial_interval",
	"ranking_retry_max_interval":        "ranking.retry.max_interval",
	"ranking_breaker_failure_threshold": "ranking.breaker.failure_threshold",
	"ranking_breaker_open_timeout":      "ranking.breaker.open_timeout",
	"ranking_breaker_half_open":         "ranking.breaker.half_open_requests",
	"ranking_degraded_graph_optional":   "ranking.degraded.graph_optional",

	// Index
	"index_exact_threshold": "index.exact_threshold",
	"index_num_lists":       "index.num_lists",
	"index_search_lists":    "index.search_lists",
	"index_iterations":      "index.iterations",
	"index_seed":            "index.seed",

	// Catalog
	"catalog_refresh_interval":    "catalog.refresh_interval",
	"catalog_reload_on_startup":   "catalog.reload_on_startup",
	"catalog_reload_min_interval": "catalog.reload_min_interval",

	// Security
	"cors_origins":        "security.cors_origins",
	"rate_limit_reqs":     "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"rate_limit_disabled": "security.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a config path.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - RANKING_GRAPH_WEIGHT -> ranking.weights.graph
//   - LEDGER_PATH -> ledger.path
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
