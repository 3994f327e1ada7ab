// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vitalis/internal/api"
	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/config"
)

// CatalogReloader rebuilds and publishes a catalog snapshot.
// Satisfied by *catalog.Store.
type CatalogReloader interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

// CatalogServiceConfig controls snapshot refresh.
type CatalogServiceConfig struct {
	// RefreshInterval is how often the snapshot is rebuilt. Default: 5m
	RefreshInterval time.Duration

	// ReloadOnStartup loads the first snapshot as soon as the service starts,
	// retrying with backoff for up to StartupRetryWindow.
	ReloadOnStartup    bool
	StartupRetryWindow time.Duration

	// ReloadMinInterval is the minimum spacing of on-demand reloads.
	// Zero disables throttling.
	ReloadMinInterval time.Duration

	// ReloadTimeout bounds one rebuild. Default: 2m
	ReloadTimeout time.Duration
}

// CatalogServiceConfigFrom maps the catalog config section.
func CatalogServiceConfigFrom(cfg config.CatalogConfig) CatalogServiceConfig {
	return CatalogServiceConfig{
		RefreshInterval:   cfg.RefreshInterval,
		ReloadOnStartup:   cfg.ReloadOnStartup,
		ReloadMinInterval: cfg.ReloadMinInterval,
	}
}

// CatalogService keeps the published catalog snapshot fresh. It also serves
// on-demand reloads for the API, throttled to one per ReloadMinInterval.
type CatalogService struct {
	store   CatalogReloader
	config  CatalogServiceConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
	name    string
}

var _ api.Reloader = (*CatalogService)(nil)

// NewCatalogService creates a refresh service for store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCatalogService(store CatalogReloader, cfg CatalogServiceConfig, logger zerolog.Logger) *CatalogService {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.StartupRetryWindow <= 0 {
		cfg.StartupRetryWindow = 2 * time.Minute
	}
	if cfg.ReloadTimeout <= 0 {
		cfg.ReloadTimeout = 2 * time.Minute
	}

	limit := rate.Inf
	if cfg.ReloadMinInterval > 0 {
		limit = rate.Every(cfg.ReloadMinInterval)
	}

	return &CatalogService{
		store:   store,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("service", "catalog").Logger(),
		name:    "catalog-service",
	}
}

// Serve implements suture.Service. Scheduled refresh failures are logged and
// the previous snapshot stays published. Failing to produce the first
// snapshot within the startup window returns an error so the supervisor
// restarts the service.
func (s *CatalogService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("reload_on_startup", s.config.ReloadOnStartup).
		Dur("refresh_interval", s.config.RefreshInterval).
		Msg("Catalog service starting")

	if s.config.ReloadOnStartup {
		if err := s.initialLoad(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Catalog service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.reload(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Scheduled catalog refresh failed, keeping previous snapshot")
			}
		}
	}
}

func (s *CatalogService) initialLoad(ctx context.Context) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, func() (*catalog.Snapshot, error) {
		return s.reload(ctx)
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxElapsedTime(s.config.StartupRetryWindow),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn().Err(err).Dur("retry_in", next).Msg("Initial catalog load failed")
		}),
	)
	if err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}
	return nil
}

func (s *CatalogService) reload(ctx context.Context) (*catalog.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ReloadTimeout)
	defer cancel()

	snap, err := s.store.Reload(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Uint64("version", snap.Version()).
		Int("edges", snap.EdgeCount()).
		Int("searchables", snap.SearchableCount()).
		Int("dropped", snap.Dropped()).
		Msg("Catalog snapshot published")
	return snap, nil
}

// ReloadNow implements api.Reloader. It returns api.ErrReloadThrottled when
// called again within ReloadMinInterval.
func (s *CatalogService) ReloadNow(ctx context.Context) (*catalog.Snapshot, error) {
	if !s.limiter.Allow() {
		return nil, api.ErrReloadThrottled
	}
	return s.reload(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *CatalogService) String() string {
	return s.name
}
