// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/config"
	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/supervisor"
	"github.com/tomtom215/vitalis/internal/supervisor/services"
)

// initLedger opens the interaction ledger. The persistent store also gets a
// supervised value log GC loop.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initLedger(cfg *config.LedgerConfig, tree *supervisor.SupervisorTree, logger zerolog.Logger) (ledger.Store, error) {
	if cfg.InMemory {
		logger.Warn().Msg("Interaction ledger is in memory (LEDGER_IN_MEMORY=true); feedback and usage are lost on restart")
		return ledger.NewMemoryStore(cfg.EventRetention, cfg.SearchHistoryLimit), nil
	}

	store, err := ledger.OpenBadger(ledger.BadgerConfig{
		Path:               cfg.Path,
		EventRetention:     cfg.EventRetention,
		SearchHistoryLimit: cfg.SearchHistoryLimit,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	tree.Add(supervisor.LayerData, services.NewLedgerGCService(store, cfg.GCInterval, logger))

	logger.Info().
		Str("path", cfg.Path).
		Dur("event_retention", cfg.EventRetention).
		Msg("Interaction ledger opened")
	return store, nil
}
