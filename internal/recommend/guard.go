// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalis/internal/metrics"
)

// Upstream names, used as breaker names and metric labels.
const (
	UpstreamIndex       = "index"
	UpstreamGraph       = "graph"
	UpstreamNames       = "names"
	UpstreamLedgerSeeds = "ledger_seeds"
	UpstreamLedgerUsage = "ledger_usage"
)

// guard protects one upstream with bounded retries inside a circuit breaker.
// Each attempt passes through the breaker, so an open breaker stops the
// retry loop at once.
type guard struct {
	name   string
	cb     *gobreaker.CircuitBreaker[any]
	cfg    Config
	logger zerolog.Logger
}

func newGuard(name string, cfg Config, logger zerolog.Logger) *guard {
	log := logger.With().Str("upstream", name).Logger()
	metrics.SetBreakerState(name, breakerStateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= cfg.FailureThreshold
			if trip {
				log.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("Opening circuit breaker")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.SetBreakerState(name, breakerStateValue(to))
		},
		// Bad requests, missing items and caller cancellations say nothing
		// about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrInvalidInput) ||
				isContextErr(err)
		},
	})

	return &guard{name: name, cb: cb, cfg: cfg, logger: log}
}

// breakerStateValue maps breaker states onto the ranking_breaker_state gauge.
func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do runs fn through the guard. Failures come back classified: ErrTimeout
// when ctx is done, the original error for not-found and invalid input, and
// ErrUpstreamUnavailable for everything else once retries are exhausted.
func do[T any](ctx context.Context, g *guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		result, err := g.cb.Execute(func() (any, error) {
			return fn(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return zero, backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, g.name, err))
			}
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || isContextErr(err) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return castResult[T](result)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = g.cfg.InitialInterval
	expBackoff.MaxInterval = g.cfg.MaxInterval

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(g.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordUpstreamRetry(g.name)
			g.logger.Debug().Err(err).Dur("retry_in", next).Msg("Retrying upstream call")
		}),
	)
	if err == nil {
		return result, nil
	}
	return zero, g.classify(ctx, err)
}

func (g *guard) classify(ctx context.Context, err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	switch {
	case ctx.Err() != nil:
		return timeoutError(g.name, ctx.Err())
	case isContextErr(err):
		return timeoutError(g.name, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUpstreamUnavailable):
		if errors.Is(err, ErrUpstreamUnavailable) {
			metrics.RecordUpstreamFailure(g.name)
		}
		return err
	default:
		metrics.RecordUpstreamFailure(g.name)
		g.logger.Warn().Err(err).Uint("attempts", g.cfg.MaxAttempts).Msg("Upstream call failed")
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, g.name, err)
	}
}

// castResult converts the breaker's untyped result back to T.
func castResult[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// guards holds one guard per upstream.
type guards struct {
	index, graph, names, seeds, usage *guard
}

func newGuards(cfg Config, logger zerolog.Logger) guards {
	return guards{
		index: newGuard(UpstreamIndex, cfg, logger),
		graph: newGuard(UpstreamGraph, cfg, logger),
		names: newGuard(UpstreamNames, cfg, logger),
		seeds: newGuard(UpstreamLedgerSeeds, cfg, logger),
		usage: newGuard(UpstreamLedgerUsage, cfg, logger),
	}
}
