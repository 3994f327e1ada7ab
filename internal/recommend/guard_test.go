// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalis/internal/metrics"
)

func TestGuard_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	g := newGuard("test_breaker_open", cfg, zerolog.Nop())

	calls := 0
	fail := func(context.Context) (int, error) {
		calls++
		return 0, errBackend
	}

	for i := 0; i < 2; i++ {
		if _, err := do(context.Background(), g, fail); !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("call %d error = %v, want ErrUpstreamUnavailable", i, err)
		}
	}
	if g.cb.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", g.cb.State())
	}

	_, err := do(context.Background(), g, fail)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("open breaker error = %v, want ErrUpstreamUnavailable", err)
	}
	if calls != 2 {
		t.Errorf("upstream called %d times, open breaker should fail fast", calls)
	}
	if v := testutil.ToFloat64(metrics.BreakerState.WithLabelValues("test_breaker_open")); v != 2 {
		t.Errorf("breaker state gauge = %v, want 2", v)
	}
}

func TestGuard_PermanentErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAttempts = 5
	cfg.FailureThreshold = 1
	g := newGuard("test_permanent", cfg, zerolog.Nop())

	for _, sentinel := range []error{ErrNotFound, ErrInvalidInput} {
		calls := 0
		_, err := do(context.Background(), g, func(context.Context) (string, error) {
			calls++
			return "", fmt.Errorf("lookup: %w", sentinel)
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("error = %v, want %v", err, sentinel)
		}
		if calls != 1 {
			t.Errorf("%v retried %d times", sentinel, calls)
		}
	}
	if g.cb.State() != gobreaker.StateClosed {
		t.Errorf("expected breaker to stay closed, got %v", g.cb.State())
	}
}

func TestGuard_RetriesAreCounted(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxAttempts = 4
	g := newGuard("test_retry_count", cfg, zerolog.Nop())

	calls := 0
	got, err := do(context.Background(), g, func(context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, errBackend
		}
		return []string{"ok"}, nil
	})
	if err != nil {
		t.Fatalf("do() error = %v", err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("result = %v", got)
	}
	if v := testutil.ToFloat64(metrics.UpstreamRetries.WithLabelValues("test_retry_count")); v != 2 {
		t.Errorf("retries counted = %v, want 2", v)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{invalidf("bad"), KindInvalidInput},
		{fmt.Errorf("wrap: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("%w: index", ErrUpstreamUnavailable), KindUpstreamUnavailable},
		{timeoutError("index", context.DeadlineExceeded), KindTimeout},
		{context.Canceled, KindTimeout},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestConfig_Limit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 5, false},
		{1, 1, false},
		{20, 20, false},
		{21, 20, false},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := cfg.limit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("limit(%d) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.GraphWeight = -0.1 }},
		{"zero candidate k", func(c *Config) { c.CandidateK = 0 }},
		{"default above max", func(c *Config) { c.DefaultLimit = 30 }},
		{"threshold of one", func(c *Config) { c.SimilarityThreshold = 1 }},
		{"zero dimension", func(c *Config) { c.Dimension = 0 }},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }},
		{"max interval below initial", func(c *Config) { c.MaxInterval = c.InitialInterval / 2 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
