// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package catalog builds immutable, query-ready snapshots of the DuckDB
// content catalog and publishes the current one through an atomic pointer.
//
// A Snapshot holds one cosine index per recommendation category, the
// relationship graph, and one trigram name index per searchable category.
// Readers take a snapshot once per request and never observe a partial
// reload.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/config"
	"github.com/tomtom215/vitalis/internal/database"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/recommend/fuzzy"
	"github.com/tomtom215/vitalis/internal/recommend/graph"
	"github.com/tomtom215/vitalis/internal/recommend/vectorindex"
)

// BuildOptions controls snapshot construction.
type BuildOptions struct {
	// Dimension is the required embedding length. Items that differ are
	// dropped from the snapshot.
	Dimension int

	// Index tunes the per-category vector index.
	Index vectorindex.Options
}

// OptionsFromConfig maps service configuration onto BuildOptions.
func OptionsFromConfig(ranking config.RankingConfig, index config.IndexConfig) BuildOptions {
	opts := vectorindex.DefaultOptions()
	if index.ExactThreshold > 0 {
		opts.ExactThreshold = index.ExactThreshold
	}
	if index.NumLists > 0 {
		opts.NumLists = index.NumLists
	}
	if index.SearchLists > 0 {
		opts.SearchLists = index.SearchLists
	}
	if index.Iterations > 0 {
		opts.Iterations = index.Iterations
	}
	opts.Seed = index.Seed
	return BuildOptions{Dimension: ranking.Dimension, Index: opts}
}

// Snapshot is one immutable view of the catalog. It implements
// recommend.Catalog and is safe for concurrent use.
type Snapshot struct {
	version  uint64
	loadedAt time.Time

	items       map[string]recommend.RecommendationItem
	indexes     map[string]*vectorindex.Index
	graph       *graph.Graph
	names       map[string]*fuzzy.Index
	searchables map[string]map[string]recommend.SearchableItem // category -> ID

	searchableCount int

	itemCounts map[string]int
	dropped    int
}

var _ recommend.Catalog = (*Snapshot)(nil)

// Build creates a snapshot from raw catalog data. Invalid items and edges
// touching unknown items are dropped with a warning rather than failing the
// whole load.
func Build(version uint64, data *database.SnapshotData, opts BuildOptions, logger zerolog.Logger) (*Snapshot, error) {
	if data == nil {
		return nil, errors.New("catalog: nil snapshot data")
	}
	s := &Snapshot{
		version:     version,
		loadedAt:    time.Now().UTC(),
		items:       make(map[string]recommend.RecommendationItem, len(data.Items)),
		indexes:     make(map[string]*vectorindex.Index),
		names:       make(map[string]*fuzzy.Index),
		searchables: make(map[string]map[string]recommend.SearchableItem, 2),
		itemCounts:  make(map[string]int),
	}

	entries := make(map[string][]vectorindex.Entry)
	for _, item := range data.Items {
		if opts.Dimension > 0 && len(item.Embedding) != opts.Dimension {
			logger.Warn().Str("item_id", item.ID).Int("dimension", len(item.Embedding)).
				Int("expected", opts.Dimension).Msg("Dropping catalog item with wrong embedding dimension")
			s.dropped++
			continue
		}
		if _, err := vectorindex.Normalize(item.Embedding); err != nil {
			logger.Warn().Err(err).Str("item_id", item.ID).Msg("Dropping catalog item with invalid embedding")
			s.dropped++
			continue
		}
		s.items[item.ID] = item
		entries[item.Category] = append(entries[item.Category], vectorindex.Entry{ID: item.ID, Vector: item.Embedding})
	}

	for category, list := range entries {
		ix, err := vectorindex.Build(list, opts.Index)
		if err != nil {
			return nil, fmt.Errorf("build index for category %s: %w", category, err)
		}
		s.indexes[category] = ix
		s.itemCounts[category] = ix.Len()
	}

	edges := make([]graph.Edge, 0, len(data.Edges))
	for _, e := range data.Edges {
		_, srcOK := s.items[e.SourceID]
		_, dstOK := s.items[e.TargetID]
		if !srcOK || !dstOK || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
			logger.Debug().Str("source_id", e.SourceID).Str("target_id", e.TargetID).
				Msg("Dropping edge with unknown endpoint or invalid weight")
			s.dropped++
			continue
		}
		edges = append(edges, graph.Edge{Source: e.SourceID, Target: e.TargetID, Type: e.Type, Weight: e.Weight})
	}
	g, err := graph.New(edges)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	s.graph = g

	nameEntries := make(map[string][]fuzzy.Entry)
	addSearchable := func(item recommend.SearchableItem) {
		if item.ItemID() == "" || item.ItemName() == "" {
			s.dropped++
			return
		}
		category := item.ItemCategory()
		byID := s.searchables[category]
		if byID == nil {
			byID = make(map[string]recommend.SearchableItem)
			s.searchables[category] = byID
		}
		if _, dup := byID[item.ItemID()]; dup {
			s.dropped++
			return
		}
		byID[item.ItemID()] = item
		s.searchableCount++
		nameEntries[item.ItemCategory()] = append(nameEntries[item.ItemCategory()],
			fuzzy.Entry{ID: item.ItemID(), Name: item.ItemName()})
	}
	for _, f := range data.Foods {
		addSearchable(f)
	}
	for _, ex := range data.Exercises {
		addSearchable(ex)
	}
	for category, list := range nameEntries {
		s.names[category] = fuzzy.NewIndex(list)
	}

	return s, nil
}

// Version returns the snapshot version.
func (s *Snapshot) Version() uint64 { return s.version }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// ItemCounts returns the number of indexed items per category.
func (s *Snapshot) ItemCounts() map[string]int {
	out := make(map[string]int, len(s.itemCounts))
	for k, v := range s.itemCounts {
		out[k] = v
	}
	return out
}

// EdgeCount returns the number of edges in the graph.
func (s *Snapshot) EdgeCount() int { return s.graph.Len() }

// SearchableCount returns the number of name-searchable items.
func (s *Snapshot) SearchableCount() int { return s.searchableCount }

// Dropped returns how many records were rejected while building.
func (s *Snapshot) Dropped() int { return s.dropped }

// Item returns a recommendation item with its embedding.
func (s *Snapshot) Item(id string) (recommend.RecommendationItem, bool) {
	item, ok := s.items[id]
	return item, ok
}

// SearchVectors returns the k nearest items of category to query.
func (s *Snapshot) SearchVectors(ctx context.Context, category string, query []float32, k int) ([]recommend.Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix, ok := s.indexes[category]
	if !ok || ix.Len() == 0 {
		return nil, fmt.Errorf("%w: no indexed items in category %q", recommend.ErrNotFound, category)
	}
	hits, err := ix.Search(query, k)
	switch {
	case errors.Is(err, vectorindex.ErrEmpty):
		return nil, fmt.Errorf("%w: no indexed items in category %q", recommend.ErrNotFound, category)
	case errors.Is(err, vectorindex.ErrDimension), errors.Is(err, vectorindex.ErrInvalidVector):
		return nil, fmt.Errorf("%w: %v", recommend.ErrInvalidInput, err)
	case err != nil:
		return nil, err
	}

	out := make([]recommend.Neighbor, 0, len(hits))
	for _, h := range hits {
		item, ok := s.items[h.ID]
		if !ok {
			continue
		}
		out = append(out, recommend.Neighbor{Item: item, Distance: h.Distance})
	}
	return out, nil
}

// GraphScores propagates edge weight from seeds into items of category.
func (s *Snapshot) GraphScores(ctx context.Context, seeds []string, category string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.graph.Propagate(seeds, func(target string) bool {
		item, ok := s.items[target]
		return ok && item.Category == category
	}), nil
}

// MatchNames fuzzy-matches term against searchable names in category.
func (s *Snapshot) MatchNames(ctx context.Context, term, category string, threshold float64, limit int) ([]recommend.NameMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix, ok := s.names[category]
	if !ok {
		return []recommend.NameMatch{}, nil
	}
	matches := ix.Match(term, threshold, limit)
	out := make([]recommend.NameMatch, 0, len(matches))
	for _, m := range matches {
		item, ok := s.searchables[category][m.ID]
		if !ok {
			continue
		}
		out = append(out, recommend.NameMatch{Item: item, Similarity: m.Similarity})
	}
	return out, nil
}

// Searchable looks up a food or exercise. IDs are unique per category only,
// so a food and an exercise may share one.
func (s *Snapshot) Searchable(category, id string) (recommend.SearchableItem, bool) {
	item, ok := s.searchables[category][id]
	return item, ok
}

// Related returns the outgoing edges of id, strongest first.
func (s *Snapshot) Related(id, edgeType string, limit int) []recommend.GraphEdge {
	edges := s.graph.Related(id, edgeType, limit)
	return toGraphEdges(edges)
}

// Path is a directed route through the relationship graph.
type Path struct {
	Nodes []string              `json:"nodes"`
	Edges []recommend.GraphEdge `json:"edges"`
}

// ShortestPath returns the minimum-hop path between two items, or false when
// none exists within maxDepth hops.
func (s *Snapshot) ShortestPath(from, to string, maxDepth int) (Path, bool) {
	edges, ok := s.graph.ShortestPath(from, to, maxDepth)
	if !ok {
		return Path{}, false
	}
	nodes := make([]string, 0, len(edges)+1)
	nodes = append(nodes, from)
	for _, e := range edges {
		nodes = append(nodes, e.Target)
	}
	return Path{Nodes: nodes, Edges: toGraphEdges(edges)}, true
}

// Categories returns the recommendation categories with indexed items.
func (s *Snapshot) Categories() []string {
	out := make([]string, 0, len(s.indexes))
	for c := range s.indexes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func toGraphEdges(edges []graph.Edge) []recommend.GraphEdge {
	out := make([]recommend.GraphEdge, len(edges))
	for i, e := range edges {
		out[i] = recommend.GraphEdge{SourceID: e.Source, TargetID: e.Target, Type: e.Type, Weight: e.Weight}
	}
	return out
}
