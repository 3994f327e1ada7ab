// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errBackend = errors.New("connection refused")

// mockCatalog is a hand-written Catalog. Neighbours are fixed per category
// and returned regardless of the query vector.
type mockCatalog struct {
	version     uint64
	items       map[string]RecommendationItem
	neighbors   map[string][]Neighbor
	edges       []GraphEdge
	searchables map[string]SearchableItem // category/ID
	names       map[string][]NameMatch

	vectorErr     error
	vectorFails   int32 // fail this many calls before succeeding
	vectorBlock   bool  // block until ctx is done
	graphErr      error
	namesErr      error
	namesBlock    bool // block until ctx is done
	vectorCalls   atomic.Int32
	graphCalls    atomic.Int32
	namesCalls    atomic.Int32
	lastNameLimit atomic.Int32
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		version:     1,
		items:       map[string]RecommendationItem{},
		neighbors:   map[string][]Neighbor{},
		searchables: map[string]SearchableItem{},
		names:       map[string][]NameMatch{},
	}
}

// addNeighbor registers an item and a vector hit for it at distance.
func (m *mockCatalog) addNeighbor(id, category string, distance float64) RecommendationItem {
	item := RecommendationItem{ID: id, Category: category, Title: "Item " + id, Embedding: []float32{1, 0, 0}}
	m.items[id] = item
	m.neighbors[category] = append(m.neighbors[category], Neighbor{Item: item, Distance: distance})
	return item
}

func (m *mockCatalog) addEdge(source, target string, weight float64) {
	m.edges = append(m.edges, GraphEdge{SourceID: source, TargetID: target, Type: "complements", Weight: weight})
}

func (m *mockCatalog) Version() uint64 { return m.version }

func (m *mockCatalog) Item(id string) (RecommendationItem, bool) {
	item, ok := m.items[id]
	return item, ok
}

func (m *mockCatalog) SearchVectors(ctx context.Context, category string, _ []float32, k int) ([]Neighbor, error) {
	n := m.vectorCalls.Add(1)
	if m.vectorBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= m.vectorFails {
		return nil, errBackend
	}
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	hits := append([]Neighbor(nil), m.neighbors[category]...)
	if len(hits) == 0 {
		return nil, ErrNotFound
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Item.ID < hits[j].Item.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockCatalog) GraphScores(_ context.Context, seeds []string, category string) (map[string]float64, error) {
	m.graphCalls.Add(1)
	if m.graphErr != nil {
		return nil, m.graphErr
	}
	seedSet := map[string]struct{}{}
	for _, s := range seeds {
		seedSet[s] = struct{}{}
	}
	scores := map[string]float64{}
	for _, e := range m.edges {
		if _, ok := seedSet[e.SourceID]; !ok || e.SourceID == e.TargetID {
			continue
		}
		if item, ok := m.items[e.TargetID]; !ok || item.Category != category {
			continue
		}
		scores[e.TargetID] += e.Weight
	}
	return scores, nil
}

func (m *mockCatalog) MatchNames(ctx context.Context, _ string, category string, _ float64, limit int) ([]NameMatch, error) {
	m.namesCalls.Add(1)
	m.lastNameLimit.Store(int32(limit))
	if m.namesBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.namesErr != nil {
		return nil, m.namesErr
	}
	found := m.names[category]
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *mockCatalog) Searchable(category, id string) (SearchableItem, bool) {
	s, ok := m.searchables[key(category, id)]
	return s, ok
}

func (m *mockCatalog) addSearchable(item SearchableItem) {
	m.searchables[key(item.ItemCategory(), item.ItemID())] = item
}

func (m *mockCatalog) addFood(id, name string) FoodItem {
	f := FoodItem{ID: id, Name: name}
	m.addSearchable(f)
	return f
}

// staticSource serves one catalog, or none when cat is nil.
type staticSource struct {
	cat Catalog
}

func (s staticSource) Current() Catalog { return s.cat }

type mockInteractions struct {
	mu          sync.Mutex
	implemented map[string][]string
	usage       map[string][]UsageRecord
	seedsErr    error
	usageErr    error
	usageBlock  bool // block until ctx is done
	seedsCalls  int
}

func newMockInteractions() *mockInteractions {
	return &mockInteractions{
		implemented: map[string][]string{},
		usage:       map[string][]UsageRecord{},
	}
}

func key(userID, category string) string { return userID + "/" + category }

func (m *mockInteractions) ImplementedItems(_ context.Context, userID, category string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seedsCalls++
	if m.seedsErr != nil {
		return nil, m.seedsErr
	}
	return m.implemented[key(userID, category)], nil
}

func (m *mockInteractions) UsageHistory(ctx context.Context, userID, category string, limit int) ([]UsageRecord, error) {
	if m.usageBlock {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usageErr != nil {
		return nil, m.usageErr
	}
	recs := m.usage[key(userID, category)]
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Dimension = 3
	cfg.RequestTimeout = time.Second
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, cat Catalog, in Interactions) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, staticSource{cat: cat}, in, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

var unitQuery = []float32{1, 0, 0}
