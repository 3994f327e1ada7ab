// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/vitalis/docs" // Import generated swagger docs
	"github.com/tomtom215/vitalis/internal/api"
	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/config"
	"github.com/tomtom215/vitalis/internal/database"
	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/supervisor"
	"github.com/tomtom215/vitalis/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Vitalis stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // Sequential initialization steps
func run() error {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logger := logging.Logger()

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Int("dimension", cfg.Ranking.Dimension).
		Msg("Starting Vitalis with supervisor tree")

	db, err := database.New(&cfg.Database, logging.WithComponent("database"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog database")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.WithComponent("supervisor")), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	interactions, err := initLedger(&cfg.Ledger, tree, logging.WithComponent("ledger"))
	if err != nil {
		return err
	}
	defer func() {
		if err := interactions.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing interaction ledger")
		}
	}()

	store := catalog.NewStore(db, catalog.OptionsFromConfig(cfg.Ranking, cfg.Index), logging.WithComponent("catalog"))

	engine, err := recommend.NewEngine(recommend.ConfigFromRanking(cfg.Ranking), store, interactions, logging.WithComponent("recommend"))
	if err != nil {
		return err
	}

	catalogSvc := services.NewCatalogService(store, services.CatalogServiceConfigFrom(cfg.Catalog), logger)

	handler, err := api.NewHandler(api.HandlerDeps{
		Engine:   engine,
		Catalog:  store,
		Ledger:   interactions,
		Curator:  db,
		Reloader: catalogSvc,
	})
	if err != nil {
		return err
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromSecurity(cfg.Security))

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree.Add(supervisor.LayerCatalog, catalogSvc)
	tree.Add(supervisor.LayerAPI, services.NewHTTPServerService(server, 10*time.Second, logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if ctx.Err() == nil {
		// The tree stopped without a signal.
		return fmt.Errorf("supervisor tree stopped unexpectedly: %w", treeErr)
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor shutdown error")
	}
	return nil
}
