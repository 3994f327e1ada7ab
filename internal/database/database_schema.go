// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the catalog DDL. Embeddings are stored as a
// BLOB of little-endian float32 values; tags, metadata and list columns as
// JSON text.
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS recommendation_items (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS recommendation_edges (
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			edge_type TEXT NOT NULL,
			weight DOUBLE NOT NULL DEFAULT 1.0 CHECK (weight >= 0),
			metadata TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source_id, target_id, edge_type)
		)`,

		`CREATE TABLE IF NOT EXISTS food_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			calories DOUBLE NOT NULL DEFAULT 0,
			protein_g DOUBLE NOT NULL DEFAULT 0,
			carbs_g DOUBLE NOT NULL DEFAULT 0,
			fat_g DOUBLE NOT NULL DEFAULT 0,
			serving_size DOUBLE NOT NULL DEFAULT 0,
			serving_unit TEXT NOT NULL DEFAULT '',
			is_user_created BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS exercises (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			muscle_groups TEXT NOT NULL DEFAULT '[]',
			equipment TEXT NOT NULL DEFAULT '[]',
			met DOUBLE NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE INDEX IF NOT EXISTS idx_items_category ON recommendation_items(category)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON recommendation_edges(source_id)`,
	}
	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
