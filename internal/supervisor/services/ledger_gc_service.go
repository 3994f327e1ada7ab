// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GarbageCollector reclaims value log space. Satisfied by *ledger.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// LedgerGCService runs value log GC on a fixed interval. A failed pass is
// logged and retried on the next tick.
type LedgerGCService struct {
	store    GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewLedgerGCService creates a GC loop. A non-positive interval means 10m.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLedgerGCService(store GarbageCollector, interval time.Duration, logger zerolog.Logger) *LedgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &LedgerGCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "ledger-gc").Logger(),
		name:     "ledger-gc",
	}
}

// Serve implements suture.Service.
func (s *LedgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(); err != nil {
				s.logger.Warn().Err(err).Msg("Ledger GC failed")
				continue
			}
			s.logger.Debug().Dur("duration", time.Since(start)).Msg("Ledger GC complete")
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *LedgerGCService) String() string {
	return s.name
}
