// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package catalog

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/database"
	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/recommend/vectorindex"
)

type fakeSource struct {
	mu   sync.Mutex
	data *database.SnapshotData
	err  error
}

func (f *fakeSource) LoadSnapshotData(context.Context) (*database.SnapshotData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *fakeSource) set(data *database.SnapshotData, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

// unit returns a 2-d embedding whose cosine with (1, 0) is sim.
func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func item(id, category string, embedding []float32) recommend.RecommendationItem {
	return recommend.RecommendationItem{ID: id, Category: category, Title: "Title " + id, Embedding: embedding}
}

func testOptions() BuildOptions {
	return BuildOptions{Dimension: 2, Index: vectorindex.DefaultOptions()}
}

func testData() *database.SnapshotData {
	return &database.SnapshotData{
		Items: []recommend.RecommendationItem{
			item("A", "sleep", unit(0.65)),
			item("B", "sleep", unit(0.63)),
			item("S", "sleep", unit(0.0)),
			item("D", "diet", unit(0.99)),
			item("bad", "sleep", []float32{1, 0, 0}),
		},
		Edges: []recommend.GraphEdge{
			{SourceID: "S", TargetID: "B", Type: "related", Weight: 1.0},
			{SourceID: "S", TargetID: "D", Type: "related", Weight: 5.0},
			{SourceID: "S", TargetID: "ghost", Type: "related", Weight: 1.0},
			{SourceID: "A", TargetID: "B", Type: "related", Weight: 0.5},
			{SourceID: "B", TargetID: "D", Type: "prerequisite", Weight: 0.5},
		},
		Foods: []recommend.FoodItem{
			{ID: "f1", Name: "Greek Yogurt"},
			{ID: "f2", Name: "Banana"},
		},
		Exercises: []recommend.Exercise{
			{ID: "e1", Name: "Goblet Squat"},
		},
	}
}

func buildTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := Build(1, testData(), testOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return snap
}

func TestBuild_DropsInvalidRecords(t *testing.T) {
	t.Parallel()

	snap := buildTestSnapshot(t)
	if _, ok := snap.Item("bad"); ok {
		t.Error("item with wrong dimension should be dropped")
	}
	if got := snap.ItemCounts(); got["sleep"] != 3 || got["diet"] != 1 {
		t.Errorf("ItemCounts() = %v, want sleep=3 diet=1", got)
	}
	if snap.EdgeCount() != 4 {
		t.Errorf("EdgeCount() = %d, want 4 (edge to unknown item dropped)", snap.EdgeCount())
	}
	if snap.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", snap.Dropped())
	}
	if snap.SearchableCount() != 3 {
		t.Errorf("SearchableCount() = %d, want 3", snap.SearchableCount())
	}
}

func TestSnapshot_SearchVectors(t *testing.T) {
	t.Parallel()

	snap := buildTestSnapshot(t)
	ctx := context.Background()

	hits, err := snap.SearchVectors(ctx, "sleep", []float32{1, 0}, 20)
	if err != nil {
		t.Fatalf("SearchVectors() error = %v", err)
	}
	want := []string{"A", "B", "S"}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i, id := range want {
		if hits[i].Item.ID != id {
			t.Errorf("hits[%d] = %s, want %s", i, hits[i].Item.ID, id)
		}
	}

	if _, err := snap.SearchVectors(ctx, "mindfulness", []float32{1, 0}, 20); !errors.Is(err, recommend.ErrNotFound) {
		t.Errorf("empty category err = %v, want ErrNotFound", err)
	}
	if _, err := snap.SearchVectors(ctx, "sleep", []float32{1, 0, 0}, 20); !errors.Is(err, recommend.ErrInvalidInput) {
		t.Errorf("wrong dimension err = %v, want ErrInvalidInput", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := snap.SearchVectors(canceled, "sleep", []float32{1, 0}, 20); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled err = %v, want context.Canceled", err)
	}
}

func TestSnapshot_GraphScoresRestrictedToCategory(t *testing.T) {
	t.Parallel()

	snap := buildTestSnapshot(t)
	scores, err := snap.GraphScores(context.Background(), []string{"S", "S"}, "sleep")
	if err != nil {
		t.Fatalf("GraphScores() error = %v", err)
	}
	if len(scores) != 1 || scores["B"] != 1.0 {
		t.Errorf("scores = %v, want only B=1.0", scores)
	}
}

func TestSnapshot_MatchNames(t *testing.T) {
	t.Parallel()

	snap := buildTestSnapshot(t)
	ctx := context.Background()

	matches, err := snap.MatchNames(ctx, "yogurt", recommend.CategoryFood, 0.3, 5)
	if err != nil {
		t.Fatalf("MatchNames() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Item.ItemID() != "f1" {
		t.Errorf("matches = %+v, want f1", matches)
	}

	matches, err = snap.MatchNames(ctx, "yogurt", "supplements", 0.3, 5)
	if err != nil || len(matches) != 0 {
		t.Errorf("unknown category = %v, %v; want empty, nil", matches, err)
	}

	if item, ok := snap.Searchable(recommend.CategoryExercise, "e1"); !ok || item.ItemName() != "Goblet Squat" {
		t.Errorf("Searchable(exercise, e1) = %v, %v", item, ok)
	}
	if _, ok := snap.Searchable(recommend.CategoryFood, "e1"); ok {
		t.Error("exercise e1 should not resolve as a food")
	}
}

func TestSnapshot_SearchableIDsScopedByCategory(t *testing.T) {
	t.Parallel()

	data := &database.SnapshotData{
		Foods:     []recommend.FoodItem{{ID: "1", Name: "Oatmeal"}},
		Exercises: []recommend.Exercise{{ID: "1", Name: "Deadlift"}},
	}
	snap, err := Build(1, data, testOptions(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if snap.SearchableCount() != 2 || snap.Dropped() != 0 {
		t.Errorf("SearchableCount() = %d, Dropped() = %d; want 2, 0", snap.SearchableCount(), snap.Dropped())
	}
	if food, ok := snap.Searchable(recommend.CategoryFood, "1"); !ok || food.ItemName() != "Oatmeal" {
		t.Errorf("Searchable(food, 1) = %v, %v; want Oatmeal", food, ok)
	}
	if ex, ok := snap.Searchable(recommend.CategoryExercise, "1"); !ok || ex.ItemName() != "Deadlift" {
		t.Errorf("Searchable(exercise, 1) = %v, %v; want Deadlift", ex, ok)
	}

	store := NewStore(&fakeSource{data: data}, testOptions(), zerolog.Nop())
	ctx := context.Background()
	if _, err := store.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	cfg := recommend.DefaultConfig()
	cfg.Dimension = 2
	cfg.RequestTimeout = time.Second
	interactions := ledger.NewMemoryStore(time.Hour, 10)
	engine, err := recommend.NewEngine(cfg, store, interactions, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if _, err := interactions.RecordUsage(ctx, ledger.UsageEvent{
		EventID: "u1", UserID: "u", ItemID: "1", ItemType: recommend.CategoryFood,
	}); err != nil {
		t.Fatalf("RecordUsage() error = %v", err)
	}

	resp, err := engine.Suggest(ctx, recommend.SuggestRequest{UserID: "u", Term: "zzz", Category: recommend.CategoryFood})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Name != "Oatmeal" || resp.Suggestions[0].UseCount != 1 {
		t.Errorf("food suggestions = %+v, want the Oatmeal history entry", resp.Suggestions)
	}
}

func TestSnapshot_RelatedAndPath(t *testing.T) {
	t.Parallel()

	snap := buildTestSnapshot(t)

	related := snap.Related("S", "", 5)
	if len(related) != 2 || related[0].TargetID != "D" || related[1].TargetID != "B" {
		t.Errorf("Related(S) = %+v, want D then B", related)
	}
	if got := snap.Related("B", "prerequisite", 0); len(got) != 1 {
		t.Errorf("Related(B, prerequisite) = %+v, want 1 edge", got)
	}

	path, ok := snap.ShortestPath("A", "D", 3)
	if !ok {
		t.Fatal("expected a path from A to D")
	}
	wantNodes := []string{"A", "B", "D"}
	if len(path.Nodes) != len(wantNodes) {
		t.Fatalf("path nodes = %v, want %v", path.Nodes, wantNodes)
	}
	for i := range wantNodes {
		if path.Nodes[i] != wantNodes[i] {
			t.Errorf("path.Nodes[%d] = %s, want %s", i, path.Nodes[i], wantNodes[i])
		}
	}
	if _, ok := snap.ShortestPath("D", "A", 3); ok {
		t.Error("expected no path from D to A")
	}
}

func TestStore_ReloadLifecycle(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(testData(), nil)
	store := NewStore(src, testOptions(), zerolog.Nop())

	if store.Current() != nil {
		t.Fatal("Current() should be nil before the first load")
	}
	if store.Loaded() {
		t.Fatal("Loaded() should be false before the first load")
	}

	snap, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if snap.Version() != 1 || store.Current().Version() != 1 {
		t.Errorf("version = %d, want 1", snap.Version())
	}

	src.set(nil, errors.New("duckdb unavailable"))
	if _, err := store.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	if store.Snapshot() != snap {
		t.Error("failed reload should keep the previous snapshot")
	}

	src.set(testData(), nil)
	snap2, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if snap2.Version() != 2 {
		t.Errorf("version = %d, want 2", snap2.Version())
	}
}

func TestStore_EngineEndToEnd(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	src.set(testData(), nil)
	store := NewStore(src, testOptions(), zerolog.Nop())

	cfg := recommend.DefaultConfig()
	cfg.Dimension = 2
	cfg.RequestTimeout = time.Second

	interactions := ledger.NewMemoryStore(time.Hour, 10)
	engine, err := recommend.NewEngine(cfg, store, interactions, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	ctx := context.Background()
	req := recommend.RecommendRequest{UserID: "u1", Category: "sleep", Query: []float32{1, 0}, Limit: 3}

	if _, err := engine.Recommend(ctx, req); !errors.Is(err, recommend.ErrUpstreamUnavailable) {
		t.Fatalf("before load err = %v, want ErrUpstreamUnavailable", err)
	}
	if _, err := store.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	implemented := true
	if _, err := interactions.SaveFeedback(ctx, ledger.FeedbackEvent{
		EventID: "ev1", UserID: "u1", ItemID: "S", Category: "sleep", Implemented: &implemented,
	}); err != nil {
		t.Fatalf("SaveFeedback() error = %v", err)
	}

	resp, err := engine.Recommend(ctx, req)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(resp.Items) < 2 || resp.Items[0].Item.ID != "B" || resp.Items[1].Item.ID != "A" {
		t.Fatalf("ranking = %+v, want B then A", resp.Items)
	}
	if resp.Metadata.Seeds != 1 || resp.Metadata.SnapshotVersion != 1 {
		t.Errorf("metadata = %+v, want seeds=1 version=1", resp.Metadata)
	}

	empty, err := engine.Recommend(ctx, recommend.RecommendRequest{UserID: "u1", Category: "mindfulness", Query: []float32{1, 0}})
	if err != nil {
		t.Fatalf("empty category error = %v", err)
	}
	if len(empty.Items) != 0 {
		t.Errorf("empty category items = %+v", empty.Items)
	}
}
