// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalis/internal/metrics"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/validation"
)

// maxConflictRetries bounds retries of a write that hit a DuckDB conflict.
const maxConflictRetries = 3

// execQuerier is satisfied by *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpsertItem inserts a recommendation item. An existing item keeps its
// category, title, content and embedding; only tags and metadata change.
// It reports whether the item was created.
func (db *DB) UpsertItem(ctx context.Context, item recommend.RecommendationItem, dimension int) (created bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "recommendation_items", time.Since(start), err) }()

	if err := validateItem(item, dimension); err != nil {
		return false, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return upsertItem(ctx, db.conn, item)
}

// UpsertItems writes a batch of items in one transaction: either every item
// is written or none is. It returns how many items were created.
func (db *DB) UpsertItems(ctx context.Context, items []recommend.RecommendationItem, dimension int) (created int, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert_batch", "recommendation_items", time.Since(start), err) }()

	if len(items) == 0 {
		return 0, invalidRecord("batch is empty")
	}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if err := validateItem(item, dimension); err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return 0, invalidRecord("item %q appears twice in the batch", item.ID)
		}
		seen[item.ID] = struct{}{}
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		created, err = db.upsertItemsTx(ctx, items)
		if err == nil || !isTransactionConflict(err) || attempt >= maxConflictRetries {
			return created, err
		}
		db.logger.Debug().Int("attempt", attempt).Int("items", len(items)).Msg("Batch upsert conflict, retrying")
	}
}

func (db *DB) upsertItemsTx(ctx context.Context, items []recommend.RecommendationItem) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, item := range items {
		isNew, err := upsertItem(ctx, tx, item)
		if err != nil {
			return 0, fmt.Errorf("item %s: %w", item.ID, err)
		}
		if isNew {
			created++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return created, nil
}

// upsertItem writes one validated item.
func upsertItem(ctx context.Context, q execQuerier, item recommend.RecommendationItem) (bool, error) {
	tags, err := json.Marshal(nonNilTags(item.Tags))
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}
	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return false, err
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	exists, err := itemExists(ctx, q, item.ID)
	if err != nil {
		return false, err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO recommendation_items (id, category, title, content, tags, embedding, dimension, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			tags = EXCLUDED.tags,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP`,
		item.ID, item.Category, item.Title, item.Content, string(tags),
		EncodeEmbedding(item.Embedding), len(item.Embedding), meta, createdAt.UTC())
	if err != nil {
		return false, fmt.Errorf("upsert item: %w", err)
	}
	return !exists, nil
}

func itemExists(ctx context.Context, q execQuerier, id string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM recommendation_items WHERE id = ?`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return exists, nil
}

// UpsertEdge inserts a typed edge or replaces its weight and metadata. Both
// endpoints must already exist. Callers apply recommend.DefaultEdgeWeight
// when no weight was supplied.
func (db *DB) UpsertEdge(ctx context.Context, edge recommend.GraphEdge) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "recommendation_edges", time.Since(start), err) }()

	if err := validateEdge(edge); err != nil {
		return err
	}
	meta, err := marshalMetadata(edge.Metadata)
	if err != nil {
		return err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	for _, id := range []string{edge.SourceID, edge.TargetID} {
		exists, err := itemExists(ctx, db.conn, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: edge endpoint %q", ErrNotFound, id)
		}
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO recommendation_edges (source_id, target_id, edge_type, weight, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (source_id, target_id, edge_type) DO UPDATE SET
			weight = EXCLUDED.weight,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP`,
		edge.SourceID, edge.TargetID, edge.Type, edge.Weight, meta)
	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

// ReinforceEdges adds delta to the weight of every outgoing edge of
// sourceID and returns the number of edges changed.
func (db *DB) ReinforceEdges(ctx context.Context, sourceID string, delta float64) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("reinforce", "recommendation_edges", time.Since(start), err) }()

	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta < 0 {
		return 0, invalidRecord("reinforcement delta must be a finite value >= 0, got %v", delta)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		var res sql.Result
		res, err = db.conn.ExecContext(ctx, `
			UPDATE recommendation_edges
			SET weight = weight + ?, updated_at = CURRENT_TIMESTAMP
			WHERE source_id = ?`, delta, sourceID)
		if err == nil {
			return res.RowsAffected()
		}
		if !isTransactionConflict(err) || attempt >= maxConflictRetries {
			return 0, fmt.Errorf("reinforce edges: %w", err)
		}
		db.logger.Debug().Int("attempt", attempt).Str("source_id", sourceID).Msg("Edge reinforcement conflict, retrying")
	}
}

func queryItems(ctx context.Context, q querier) (items []recommend.RecommendationItem, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "recommendation_items", time.Since(start), err) }()

	rows, err := q.QueryContext(ctx, `
		SELECT id, category, title, content, tags, embedding, metadata, created_at
		FROM recommendation_items
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			item      recommend.RecommendationItem
			tags      string
			metadata  string
			embedding []byte
		)
		if err := rows.Scan(&item.ID, &item.Category, &item.Title, &item.Content, &tags, &embedding, &metadata, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if item.Embedding, err = DecodeEmbedding(embedding); err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return nil, fmt.Errorf("item %s tags: %w", item.ID, err)
		}
		if item.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func queryEdges(ctx context.Context, q querier) (edges []recommend.GraphEdge, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "recommendation_edges", time.Since(start), err) }()

	rows, err := q.QueryContext(ctx, `
		SELECT source_id, target_id, edge_type, weight, metadata
		FROM recommendation_edges
		ORDER BY source_id, target_id, edge_type`)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			edge     recommend.GraphEdge
			metadata string
		)
		if err := rows.Scan(&edge.SourceID, &edge.TargetID, &edge.Type, &edge.Weight, &metadata); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if edge.Metadata, err = unmarshalMetadata(metadata); err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", edge.SourceID, edge.TargetID, err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}

func validateItem(item recommend.RecommendationItem, dimension int) error {
	if strings.TrimSpace(item.ID) == "" {
		return invalidRecord("item id is required")
	}
	if !validation.CategoryPattern.MatchString(item.Category) {
		return invalidRecord("malformed category %q", item.Category)
	}
	if strings.TrimSpace(item.Title) == "" {
		return invalidRecord("item title is required")
	}
	if len(item.Embedding) != dimension {
		return invalidRecord("embedding has %d dimensions, want %d", len(item.Embedding), dimension)
	}
	var norm float64
	for _, v := range item.Embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return invalidRecord("embedding contains a non-finite value")
		}
		norm += f * f
	}
	if norm == 0 {
		return invalidRecord("embedding has zero norm")
	}
	return nil
}

func validateEdge(edge recommend.GraphEdge) error {
	if strings.TrimSpace(edge.SourceID) == "" || strings.TrimSpace(edge.TargetID) == "" {
		return invalidRecord("edge endpoints are required")
	}
	if strings.TrimSpace(edge.Type) == "" {
		return invalidRecord("edge type is required")
	}
	if math.IsNaN(edge.Weight) || math.IsInf(edge.Weight, 0) || edge.Weight < 0 {
		return invalidRecord("edge weight must be a finite value >= 0, got %v", edge.Weight)
	}
	return nil
}

// EncodeEmbedding packs v as little-endian float32.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
