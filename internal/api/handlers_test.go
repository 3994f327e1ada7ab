// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/vitalis/internal/catalog"
	"github.com/tomtom215/vitalis/internal/database"
	"github.com/tomtom215/vitalis/internal/ledger"
	"github.com/tomtom215/vitalis/internal/recommend"
	"github.com/tomtom215/vitalis/internal/recommend/vectorindex"
)

type stubSource struct {
	data *database.SnapshotData
	err  error
}

func (s *stubSource) LoadSnapshotData(context.Context) (*database.SnapshotData, error) {
	return s.data, s.err
}

type mockCurator struct {
	mu         sync.Mutex
	items      []recommend.RecommendationItem
	edges      []recommend.GraphEdge
	foods      []recommend.FoodItem
	exercises  []recommend.Exercise
	reinforced []string
	upsertErr  error

	reinforceFails int // fail this many ReinforceEdges calls first
}

func (m *mockCurator) UpsertItem(_ context.Context, item recommend.RecommendationItem, dimension int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	if len(item.Embedding) != dimension {
		return false, database.ErrInvalidRecord
	}
	m.items = append(m.items, item)
	return true, nil
}

func (m *mockCurator) UpsertItems(_ context.Context, items []recommend.RecommendationItem, dimension int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if len(item.Embedding) != dimension {
			return 0, database.ErrInvalidRecord
		}
	}
	m.items = append(m.items, items...)
	return len(items), nil
}

func (m *mockCurator) UpsertEdge(_ context.Context, edge recommend.GraphEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = append(m.edges, edge)
	return nil
}

func (m *mockCurator) UpsertFood(_ context.Context, food recommend.FoodItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foods = append(m.foods, food)
	return nil
}

func (m *mockCurator) UpsertExercise(_ context.Context, ex recommend.Exercise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exercises = append(m.exercises, ex)
	return nil
}

func (m *mockCurator) ReinforceEdges(_ context.Context, sourceID string, _ float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reinforceFails > 0 {
		m.reinforceFails--
		return 0, errors.New("database is locked")
	}
	m.reinforced = append(m.reinforced, sourceID)
	return 2, nil
}

type throttledReloader struct{}

func (throttledReloader) ReloadNow(context.Context) (*catalog.Snapshot, error) {
	return nil, ErrReloadThrottled
}

func unit(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func testSnapshotData() *database.SnapshotData {
	items := []recommend.RecommendationItem{
		{ID: "A", Category: "sleep", Title: "Dim the lights", Embedding: unit(0.65)},
		{ID: "B", Category: "sleep", Title: "Cool bedroom", Embedding: unit(0.63)},
		{ID: "S", Category: "sleep", Title: "Fixed bedtime", Embedding: unit(0.0)},
		{ID: "N", Category: "nutrition", Title: "Eat protein", Embedding: unit(0.9)},
	}
	return &database.SnapshotData{
		Items: items,
		Edges: []recommend.GraphEdge{
			{SourceID: "S", TargetID: "B", Type: "related", Weight: 1.0},
			{SourceID: "B", TargetID: "A", Type: "related", Weight: 0.6},
		},
		Foods: []recommend.FoodItem{
			{ID: "f1", Name: "Greek Yogurt"},
			{ID: "f2", Name: "Banana"},
		},
		// f2 is also a food ID; the namespaces are separate.
		Exercises: []recommend.Exercise{{ID: "e1", Name: "Goblet Squat"}, {ID: "f2", Name: "Farmer Carry"}},
	}
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *catalog.Store
	ledger  *ledger.MemoryStore
	curator *mockCurator
}

func newTestEnv(t *testing.T, load bool) *testEnv {
	t.Helper()

	store := catalog.NewStore(&stubSource{data: testSnapshotData()},
		catalog.BuildOptions{Dimension: 2, Index: vectorindex.DefaultOptions()}, zerolog.Nop())
	if load {
		if _, err := store.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}

	cfg := recommend.DefaultConfig()
	cfg.Dimension = 2
	cfg.RequestTimeout = time.Second

	led := ledger.NewMemoryStore(time.Hour, 10)
	engine, err := recommend.NewEngine(cfg, store, led, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	curator := &mockCurator{}
	h, err := NewHandler(HandlerDeps{Engine: engine, Catalog: store, Ledger: led, Curator: curator})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true

	return &testEnv{
		handler: h,
		router:  NewRouter(h, mw).SetupChi(),
		store:   store,
		ledger:  led,
		curator: curator,
	}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var env2 envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env2); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env2
}

func decodeData(t *testing.T, e envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", e.Data, err)
	}
}

func rankedIDs(resp recommend.RecommendResponse) []string {
	ids := make([]string, len(resp.Items))
	for i, it := range resp.Items {
		ids[i] = it.Item.ID
	}
	return ids
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	rec, _ := env.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before load = %d, want 503", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("live = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}

	if _, err := env.store.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, body := env.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ready after load = %d, want 200", rec.Code)
	}
	var status struct {
		CatalogLoaded  bool           `json:"catalog_loaded"`
		CatalogVersion uint64         `json:"catalog_version"`
		ItemCounts     map[string]int `json:"item_counts"`
	}
	decodeData(t, body, &status)
	if !status.CatalogLoaded || status.CatalogVersion != 1 || status.ItemCounts["sleep"] != 3 {
		t.Errorf("status = %+v", status)
	}
}

func TestRecommendations_FeedbackSeedsRanking(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	query := map[string]interface{}{"category": "sleep", "query_vector": []float32{1, 0}, "limit": 2}

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations", query)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.RecommendResponse
	decodeData(t, body, &resp)
	if ids := rankedIDs(resp); len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Fatalf("ranking without seeds = %v, want [A B]", ids)
	}

	feedback := map[string]interface{}{"item_id": "S", "implemented": true}
	rec, body = env.do(t, http.MethodPost, "/api/v1/users/u1/feedback", feedback, IdempotencyKeyHeader, "fb-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback status = %d, body %s", rec.Code, rec.Body.String())
	}
	var wr WriteResponse
	decodeData(t, body, &wr)
	if wr.EventID != "fb-1" || !wr.Applied || !wr.NewlyImplemented || wr.ReinforcedEdges != 2 {
		t.Errorf("feedback result = %+v", wr)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/users/u1/feedback", feedback, IdempotencyKeyHeader, "fb-1")
	if rec.Code != http.StatusOK {
		t.Errorf("duplicate feedback status = %d, want 200", rec.Code)
	}
	if len(env.curator.reinforced) != 1 || env.curator.reinforced[0] != "S" {
		t.Errorf("reinforced = %v, want exactly [S]", env.curator.reinforced)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations", query)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp = recommend.RecommendResponse{}
	decodeData(t, body, &resp)
	if ids := rankedIDs(resp); len(ids) != 2 || ids[0] != "B" || ids[1] != "A" {
		t.Errorf("ranking with seed S = %v, want [B A]", ids)
	}
	if resp.Metadata.Seeds != 1 {
		t.Errorf("seeds = %d, want 1", resp.Metadata.Seeds)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/u1/feedback/S", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback state status = %d", rec.Code)
	}
	var state ledger.RecommendationState
	decodeData(t, body, &state)
	if !state.Implemented || state.Category != "sleep" {
		t.Errorf("state = %+v", state)
	}
}

func TestRecommendations_GetWithQueryParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	rec, body := env.do(t, http.MethodGet, "/api/v1/users/u1/recommendations?category=sleep&limit=1",
		map[string]interface{}{"query_vector": []float32{1, 0}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.RecommendResponse
	decodeData(t, body, &resp)
	if ids := rankedIDs(resp); len(ids) != 1 || ids[0] != "A" {
		t.Errorf("ids = %v, want [A]", ids)
	}
}

func TestRecommendations_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		load     bool
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"missing body", true, nil, http.StatusBadRequest, ErrCodeInvalidInput},
		{"missing vector", true, map[string]interface{}{"category": "sleep"}, http.StatusBadRequest, ErrCodeValidation},
		{"wrong dimension", true, map[string]interface{}{"category": "sleep", "query_vector": []float32{1, 0, 0}}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"bad category", true, map[string]interface{}{"category": "Sleep!", "query_vector": []float32{1, 0}}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"unknown field", true, map[string]interface{}{"category": "sleep", "query_vector": []float32{1, 0}, "k": 3}, http.StatusBadRequest, ErrCodeInvalidInput},
		{"catalog not loaded", false, map[string]interface{}{"category": "sleep", "query_vector": []float32{1, 0}}, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t, tt.load)
			rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if body.Error == nil || body.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want code %s", body.Error, tt.wantErr)
			}
		})
	}
}

func TestRecommendations_EmptyCategory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations",
		map[string]interface{}{"category": "mindfulness", "query_vector": []float32{1, 0}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp recommend.RecommendResponse
	decodeData(t, body, &resp)
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("items = %v, want empty list", resp.Items)
	}
}

func TestDailyRecommendations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations/daily",
		map[string]interface{}{"query_vector": []float32{1, 0}, "limit": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out DailyRecommendationsResponse
	decodeData(t, body, &out)
	if len(out.Categories) != len(DailyCategories) {
		t.Fatalf("categories = %d, want %d", len(out.Categories), len(DailyCategories))
	}
	if got := out.Categories["nutrition"]; got == nil || len(got.Items) != 1 || got.Items[0].Item.ID != "N" {
		t.Errorf("nutrition = %+v", got)
	}
	if got := out.Categories["workout"]; got == nil || len(got.Items) != 0 {
		t.Errorf("workout = %+v, want empty", got)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/users/u1/recommendations/daily",
		map[string]interface{}{"query_vectors": map[string][]float32{"sleep": {1, 0}, "nutrition": {1, 0, 0}}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("one bad category status = %d, want 400", rec.Code)
	}
	if body.Error == nil || body.Error.Code != ErrCodeInvalidInput {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestSuggestions_HistoryFirstAndSearchLogged(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "f1", "item_type": "food", "event_id": "use-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("usage status = %d, body %s", rec.Code, rec.Body.String())
	}
	var wr WriteResponse
	decodeData(t, body, &wr)
	if wr.UseCount != 1 || wr.EventID != "use-1" {
		t.Errorf("usage result = %+v", wr)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/u1/suggestions?q=banana&category=food", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.SuggestResponse
	decodeData(t, body, &resp)
	if len(resp.Suggestions) != 2 || resp.Suggestions[0].ItemID != "f1" || resp.Suggestions[1].ItemID != "f2" {
		t.Fatalf("suggestions = %+v, want [f1 f2]", resp.Suggestions)
	}
	if resp.Suggestions[0].UseCount != 1 || resp.Suggestions[0].Source != recommend.SourceHistory {
		t.Errorf("history suggestion = %+v", resp.Suggestions[0])
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/u1/searches", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("searches status = %d", rec.Code)
	}
	var searches struct {
		Searches []ledger.SearchEntry `json:"searches"`
		Count    int                  `json:"count"`
	}
	decodeData(t, body, &searches)
	if searches.Count != 1 || searches.Searches[0].Term != "banana" || searches.Searches[0].ResultCount != 2 {
		t.Errorf("searches = %+v", searches)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/u1/suggestions?q=&category=food", nil)
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeInvalidInput {
		t.Errorf("empty term = %d %+v, want 400 INVALID_INPUT", rec.Code, body.Error)
	}
}

func TestRecordUsage_IdempotentAndUnknownItem(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/users/u1/usage",
			map[string]interface{}{"item_id": "e1", "item_type": "exercise"}, IdempotencyKeyHeader, "same-key")
		if rec.Code != want {
			t.Errorf("attempt %d status = %d, want %d", i, rec.Code, want)
		}
	}
	history, err := env.ledger.UsageHistory(context.Background(), "u1", recommend.CategoryExercise, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].UseCount != 1 {
		t.Errorf("history = %+v, want one record with count 1", history)
	}

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "ghost", "item_type": "food"})
	if rec.Code != http.StatusNotFound || body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown item = %d %+v, want 404", rec.Code, body.Error)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "e1"})
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeValidation {
		t.Errorf("missing item_type = %d %+v, want 400 VALIDATION_ERROR", rec.Code, body.Error)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "e1", "item_type": "food"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("exercise ID posted as food = %d, want 404", rec.Code)
	}
}

func TestRecordUsage_SharedIDKeepsItemType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	rec, _ := env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "f2", "item_type": "food"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("usage status = %d, body %s", rec.Code, rec.Body.String())
	}
	food, _ := env.ledger.UsageHistory(context.Background(), "u1", recommend.CategoryFood, 5)
	exercise, _ := env.ledger.UsageHistory(context.Background(), "u1", recommend.CategoryExercise, 5)
	if len(food) != 1 || len(exercise) != 0 {
		t.Fatalf("food history = %+v, exercise history = %+v; want the pick recorded as food", food, exercise)
	}

	rec, body := env.do(t, http.MethodGet, "/api/v1/users/u1/suggestions?q=zzz&category=food", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions status = %d", rec.Code)
	}
	var resp recommend.SuggestResponse
	decodeData(t, body, &resp)
	if len(resp.Suggestions) != 1 || resp.Suggestions[0].Name != "Banana" {
		t.Errorf("suggestions = %+v, want the Banana history entry", resp.Suggestions)
	}
}

func TestUsageHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	for i, item := range []string{"f2", "f2", "f1"} {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/users/u1/usage",
			map[string]interface{}{"item_id": item, "item_type": "food", "event_id": fmt.Sprintf("use-%d", i)})
		if rec.Code != http.StatusCreated {
			t.Fatalf("usage %d status = %d", i, rec.Code)
		}
	}
	env.do(t, http.MethodPost, "/api/v1/users/u1/usage", map[string]interface{}{"item_id": "e1", "item_type": "exercise"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/users/u1/usage?category=food", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Category string       `json:"category"`
		Items    []UsageEntry `json:"items"`
		Count    int          `json:"count"`
	}
	decodeData(t, body, &out)
	if out.Count != 2 || out.Items[0].ItemID != "f2" || out.Items[0].UseCount != 2 || out.Items[0].Name != "Banana" {
		t.Errorf("usage = %+v, want Banana (2) first", out)
	}
	if out.Items[1].ItemID != "f1" || out.Items[1].Name != "Greek Yogurt" {
		t.Errorf("second entry = %+v, want Greek Yogurt", out.Items[1])
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/users/u1/usage?category=food&limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("limited status = %d", rec.Code)
	}
	decodeData(t, body, &out)
	if out.Count != 1 {
		t.Errorf("limit=1 returned %d items", out.Count)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/users/u1/usage?category=sleep", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-searchable category status = %d, want 400", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/users/u1/usage?category=food&limit=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestSaveFeedback_ReinforcementRetried(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.curator.reinforceFails = 1
	feedback := map[string]interface{}{"item_id": "S", "implemented": true}

	rec, body := env.do(t, http.MethodPost, "/api/v1/users/u1/feedback", feedback, IdempotencyKeyHeader, "fb-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("feedback status = %d, body %s", rec.Code, rec.Body.String())
	}
	var wr WriteResponse
	decodeData(t, body, &wr)
	if !wr.NewlyImplemented || wr.ReinforcedEdges != 0 {
		t.Errorf("first attempt = %+v, want implemented with no edges reinforced", wr)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/users/u1/feedback", feedback, IdempotencyKeyHeader, "fb-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", rec.Code)
	}
	wr = WriteResponse{}
	decodeData(t, body, &wr)
	if wr.Applied || wr.ReinforcedEdges != 2 {
		t.Errorf("retry = %+v, want a duplicate that reinforces 2 edges", wr)
	}

	env.do(t, http.MethodPost, "/api/v1/users/u1/feedback", feedback, IdempotencyKeyHeader, "fb-1")
	if len(env.curator.reinforced) != 1 {
		t.Errorf("reinforced = %v, want exactly one successful reinforcement", env.curator.reinforced)
	}
}

func TestIdempotencyKeyScopedPerUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	for _, user := range []string{"u1", "u2"} {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/users/"+user+"/usage",
			map[string]interface{}{"item_id": "f1", "item_type": "food"}, IdempotencyKeyHeader, "client-1")
		if rec.Code != http.StatusCreated {
			t.Errorf("%s usage status = %d, want 201", user, rec.Code)
		}
	}
}

func TestTrending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	for _, u := range []string{"u1", "u2"} {
		env.do(t, http.MethodPost, "/api/v1/users/"+u+"/usage", map[string]interface{}{"item_id": "f2", "item_type": "food"})
	}
	env.do(t, http.MethodPost, "/api/v1/users/u3/usage", map[string]interface{}{"item_id": "f1", "item_type": "food"})
	env.do(t, http.MethodPost, "/api/v1/users/u4/usage", map[string]interface{}{"item_id": "f2", "item_type": "exercise"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/suggestions/trending?category=food&days=7&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out TrendingResponse
	decodeData(t, body, &out)
	if len(out.Items) != 2 || out.Items[0].ItemID != "f2" || out.Items[0].Users != 2 || out.Items[0].Name != "Banana" {
		t.Errorf("trending = %+v", out.Items)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/suggestions/trending?category=sleep", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-searchable category status = %d, want 400", rec.Code)
	}
}

func TestCatalogGraphEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)

	rec, body := env.do(t, http.MethodGet, "/api/v1/catalog/items/S/related", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("related status = %d", rec.Code)
	}
	var related struct {
		Related []recommend.GraphEdge `json:"related"`
	}
	decodeData(t, body, &related)
	if len(related.Related) != 1 || related.Related[0].TargetID != "B" {
		t.Errorf("related = %+v", related.Related)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/catalog/path?from=S&to=A", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("path status = %d", rec.Code)
	}
	var path catalog.Path
	decodeData(t, body, &path)
	if len(path.Nodes) != 3 || path.Nodes[1] != "B" {
		t.Errorf("path = %+v, want S->B->A", path)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog/path?from=A&to=S", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing path status = %d, want 404", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog/path?from=S&to=A&max_depth=9", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("deep path status = %d, want 400", rec.Code)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/catalog/items/B/cluster?min_weight=0.5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cluster status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cluster recommend.ClusterResponse
	decodeData(t, body, &cluster)
	if cluster.Item.ID != "B" || len(cluster.Related) == 0 || cluster.Related[0].Item.ID != "A" {
		t.Errorf("cluster = %+v", cluster)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/catalog/items/ghost/cluster", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown cluster item status = %d, want 404", rec.Code)
	}
}

func TestCatalogCuration(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/catalog/items", map[string]interface{}{
		"id": "C", "category": "sleep", "title": "No screens", "embedding": []float32{0.5, 0.5},
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("item status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec, body := env.do(t, http.MethodPost, "/api/v1/catalog/items", map[string]interface{}{
		"id": "C", "category": "sleep", "title": "No screens", "embedding": []float32{0.5, 0.5, 0.5},
	})
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeInvalidInput {
		t.Errorf("wrong dimension = %d %+v, want 400 INVALID_INPUT", rec.Code, body.Error)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/catalog/edges", map[string]interface{}{
		"source_id": "A", "target_id": "C", "type": "related",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edge status = %d", rec.Code)
	}
	var edge recommend.GraphEdge
	decodeData(t, body, &edge)
	if edge.Weight != recommend.DefaultEdgeWeight {
		t.Errorf("edge weight = %v, want default %v", edge.Weight, recommend.DefaultEdgeWeight)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/v1/catalog/edges", map[string]interface{}{
		"source_id": "A", "target_id": "C", "type": "related", "weight": -1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative weight status = %d, want 400", rec.Code)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload status = %d", rec.Code)
	}
	var reload ReloadResponse
	decodeData(t, body, &reload)
	if reload.Version != 2 {
		t.Errorf("reload version = %d, want 2", reload.Version)
	}
}

func TestCatalogBatchUpsert(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	item := func(id string, embedding ...float32) map[string]interface{} {
		return map[string]interface{}{"id": id, "category": "sleep", "title": "Item " + id, "embedding": embedding}
	}

	rec, body := env.do(t, http.MethodPost, "/api/v1/catalog/items/batch", map[string]interface{}{
		"items": []interface{}{item("C", 0.5, 0.5), item("D", 1, 0)},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("batch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Count   int `json:"count"`
		Created int `json:"created"`
	}
	decodeData(t, body, &out)
	if out.Count != 2 || out.Created != 2 || len(env.curator.items) != 2 {
		t.Errorf("batch result = %+v, curator items = %d", out, len(env.curator.items))
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/catalog/items/batch", map[string]interface{}{
		"items": []interface{}{item("E", 1, 0), item("F", 1, 0, 0)},
	})
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeInvalidInput {
		t.Errorf("bad dimension batch = %d %+v, want 400 INVALID_INPUT", rec.Code, body.Error)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/catalog/items/batch", map[string]interface{}{"items": []interface{}{}})
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeValidation {
		t.Errorf("empty batch = %d %+v, want 400 VALIDATION_ERROR", rec.Code, body.Error)
	}
	if len(env.curator.items) != 2 {
		t.Errorf("rejected batches wrote items: %d", len(env.curator.items))
	}
}

func TestReloadCatalog_Throttled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.handler.reloader = throttledReloader{}
	rec, body := env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	if rec.Code != http.StatusTooManyRequests || body.Error == nil || body.Error.Code != ErrCodeRateLimited {
		t.Errorf("throttled reload = %d %+v, want 429", rec.Code, body.Error)
	}
}

func TestStatusForKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{recommend.ErrInvalidInput, http.StatusBadRequest, ErrCodeInvalidInput},
		{ledger.ErrInvalidEvent, http.StatusBadRequest, ErrCodeInvalidInput},
		{recommend.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{recommend.ErrUpstreamUnavailable, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable},
		{recommend.ErrTimeout, http.StatusGatewayTimeout, ErrCodeTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		status, code := statusForKind(recommend.KindOf(tt.err))
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("statusForKind(%v) = %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", rec.Code)
	}
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(HandlerDeps{}); err == nil {
		t.Error("expected error for empty deps")
	}
}
