// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tomtom215/vitalis/internal/recommend"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SnapshotData is a consistent read of every catalog table.
type SnapshotData struct {
	Items     []recommend.RecommendationItem
	Edges     []recommend.GraphEdge
	Foods     []recommend.FoodItem
	Exercises []recommend.Exercise
}

// LoadSnapshotData reads all catalog tables inside one transaction.
func (db *DB) LoadSnapshotData(ctx context.Context) (*SnapshotData, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	// Read-only; rollback releases the snapshot.
	defer func() { _ = tx.Rollback() }()

	data := &SnapshotData{}
	if data.Items, err = queryItems(ctx, tx); err != nil {
		return nil, err
	}
	if data.Edges, err = queryEdges(ctx, tx); err != nil {
		return nil, err
	}
	if data.Foods, err = queryFoods(ctx, tx); err != nil {
		return nil, err
	}
	if data.Exercises, err = queryExercises(ctx, tx); err != nil {
		return nil, err
	}
	return data, nil
}

// ListItems returns every recommendation item ordered by ID.
func (db *DB) ListItems(ctx context.Context) ([]recommend.RecommendationItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return queryItems(ctx, db.conn)
}

// ListEdges returns every edge ordered by source, target and type.
func (db *DB) ListEdges(ctx context.Context) ([]recommend.GraphEdge, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return queryEdges(ctx, db.conn)
}
