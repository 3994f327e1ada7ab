// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/database"
	"github.com/tomtom215/vitalis/internal/metrics"
	"github.com/tomtom215/vitalis/internal/recommend"
)

// ErrReloadInProgress is returned by Reload when another reload is running.
var ErrReloadInProgress = errors.New("catalog reload already in progress")

// DataSource reads a consistent copy of the catalog tables.
type DataSource interface {
	LoadSnapshotData(ctx context.Context) (*database.SnapshotData, error)
}

// Store publishes the current snapshot. Reloads build a new snapshot off to
// the side and swap it in atomically.
type Store struct {
	source DataSource
	opts   BuildOptions
	logger zerolog.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	reload  sync.Mutex
}

var _ recommend.CatalogSource = (*Store)(nil)

// NewStore creates an empty store. Current returns nil until the first
// successful Reload.
func NewStore(source DataSource, opts BuildOptions, logger zerolog.Logger) *Store {
	return &Store{
		source: source,
		opts:   opts,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Current implements recommend.CatalogSource.
func (s *Store) Current() recommend.Catalog {
	snap := s.current.Load()
	if snap == nil {
		// A typed nil inside the interface would not compare equal to nil.
		return nil
	}
	return snap
}

// Loaded reports whether a snapshot has been published.
func (s *Store) Loaded() bool {
	return s.current.Load() != nil
}

// Reload reads the catalog and publishes a new snapshot. On failure the
// previous snapshot stays current.
func (s *Store) Reload(ctx context.Context) (snap *Snapshot, err error) {
	if !s.reload.TryLock() {
		return nil, ErrReloadInProgress
	}
	defer s.reload.Unlock()

	start := time.Now()
	defer func() { metrics.RecordCatalogReload(time.Since(start), err) }()

	data, err := s.source.LoadSnapshotData(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Catalog load failed, keeping previous snapshot")
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	version := s.version.Load() + 1
	snap, err = Build(version, data, s.opts, s.logger)
	if err != nil {
		s.logger.Error().Err(err).Msg("Catalog build failed, keeping previous snapshot")
		return nil, err
	}
	s.version.Store(version)
	s.current.Store(snap)

	metrics.UpdateCatalogGauges(version, snap.ItemCounts(), snap.EdgeCount())
	s.logger.Info().
		Uint64("version", version).
		Int("categories", len(snap.ItemCounts())).
		Int("edges", snap.EdgeCount()).
		Int("searchables", snap.SearchableCount()).
		Int("dropped", snap.Dropped()).
		Dur("duration", time.Since(start)).
		Msg("Catalog snapshot published")
	return snap, nil
}
