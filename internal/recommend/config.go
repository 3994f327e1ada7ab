// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/vitalis/internal/config"
)

// Config holds the immutable ranking policy.
type Config struct {
	SimilarityWeight float64
	GraphWeight      float64

	// CandidateK is the number of nearest neighbours fetched per request.
	CandidateK int

	DefaultLimit int
	MaxLimit     int

	// SimilarityThreshold is the strict lower bound for fuzzy name matches.
	SimilarityThreshold float64

	Dimension     int
	MaxTermLength int

	// RequestTimeout bounds every call unless the caller's deadline is sooner.
	RequestTimeout time.Duration

	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration

	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32

	// GraphOptional lets Recommend and Cluster rank on similarity alone when
	// the seed lookup or graph scoring fails.
	GraphOptional bool
}

// DefaultConfig returns the production ranking policy.
func DefaultConfig() Config {
	return Config{
		SimilarityWeight:    0.7,
		GraphWeight:         0.3,
		CandidateK:          20,
		DefaultLimit:        5,
		MaxLimit:            20,
		SimilarityThreshold: 0.3,
		Dimension:           1536,
		MaxTermLength:       256,
		RequestTimeout:      3 * time.Second,
		MaxAttempts:         3,
		InitialInterval:     50 * time.Millisecond,
		MaxInterval:         500 * time.Millisecond,
		FailureThreshold:    5,
		OpenTimeout:         30 * time.Second,
		HalfOpenRequests:    1,
	}
}

// ConfigFromRanking maps the loaded ranking section onto engine settings.
func ConfigFromRanking(rc config.RankingConfig) Config {
	return Config{
		SimilarityWeight:    rc.Weights.Similarity,
		GraphWeight:         rc.Weights.Graph,
		CandidateK:          rc.CandidateK,
		DefaultLimit:        rc.DefaultLimit,
		MaxLimit:            rc.MaxLimit,
		SimilarityThreshold: rc.SimilarityThreshold,
		Dimension:           rc.Dimension,
		MaxTermLength:       rc.MaxTermLength,
		RequestTimeout:      rc.RequestTimeout,
		MaxAttempts:         rc.Retry.MaxAttempts,
		InitialInterval:     rc.Retry.InitialInterval,
		MaxInterval:         rc.Retry.MaxInterval,
		FailureThreshold:    rc.Breaker.FailureThreshold,
		OpenTimeout:         rc.Breaker.OpenTimeout,
		HalfOpenRequests:    rc.Breaker.HalfOpenRequests,
		GraphOptional:       rc.Degraded.GraphOptional,
	}
}

// Validate checks the policy for values that would make ranking undefined.
func (c Config) Validate() error {
	for name, w := range map[string]float64{"similarity weight": c.SimilarityWeight, "graph weight": c.GraphWeight} {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%s must be a finite value >= 0, got %v", name, w)
		}
	}
	if c.CandidateK < 1 {
		return fmt.Errorf("candidate k must be positive, got %d", c.CandidateK)
	}
	if c.MaxLimit < 1 {
		return fmt.Errorf("max limit must be positive, got %d", c.MaxLimit)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit must be in [1, %d], got %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("similarity threshold must be in [0, 1), got %v", c.SimilarityThreshold)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	if c.MaxTermLength < 1 {
		return fmt.Errorf("max term length must be positive, got %d", c.MaxTermLength)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialInterval <= 0 || c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("retry intervals invalid: initial %v, max %v", c.InitialInterval, c.MaxInterval)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.OpenTimeout <= 0 {
		return fmt.Errorf("breaker open timeout must be positive, got %v", c.OpenTimeout)
	}
	return nil
}

// limit resolves a requested result size. Negative is invalid, zero means
// the default, anything above MaxLimit is clamped.
func (c Config) limit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, invalidf("limit must not be negative, got %d", requested)
	case requested == 0:
		return c.DefaultLimit, nil
	case requested > c.MaxLimit:
		return c.MaxLimit, nil
	default:
		return requested, nil
	}
}
