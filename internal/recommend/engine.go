// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/vitalis/internal/logging"
	"github.com/tomtom215/vitalis/internal/metrics"
	"github.com/tomtom215/vitalis/internal/validation"
)

// Operation names used in logs and metrics.
const (
	OpRecommend = "recommend"
	OpSuggest   = "suggest"
	OpCluster   = "cluster"
)

// Engine ranks recommendations and suggestions. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	cfg          Config
	catalogs     CatalogSource
	interactions Interactions
	guards       guards
	logger       zerolog.Logger
}

// NewEngine creates an engine over the given catalog and ledger.
func NewEngine(cfg Config, catalogs CatalogSource, interactions Interactions, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking config: %w", err)
	}
	if catalogs == nil {
		return nil, errors.New("catalog source is required")
	}
	if interactions == nil {
		return nil, errors.New("interactions source is required")
	}
	log := logger.With().Str("component", "recommend").Logger()
	return &Engine{
		cfg:          cfg,
		catalogs:     catalogs,
		interactions: interactions,
		guards:       newGuards(cfg, log),
		logger:       log,
	}, nil
}

// Config returns the engine's ranking policy.
func (e *Engine) Config() Config { return e.cfg }

// Recommend ranks the category's nearest neighbours of req.Query, boosted by
// graph edges from the items the user has implemented in that category.
func (e *Engine) Recommend(ctx context.Context, req RecommendRequest) (resp *RecommendResponse, err error) {
	start := time.Now()
	defer func() { e.observe(ctx, OpRecommend, start, metadataOf(resp), err) }()

	limit, err := e.validateRecommend(req)
	if err != nil {
		return nil, err
	}
	cat, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ranked, meta, err := e.rank(ctx, cat, rankInput{
		op:       OpRecommend,
		category: req.Category,
		query:    req.Query,
		limit:    limit,
		seeds: func(ctx context.Context) ([]string, error) {
			return do(ctx, e.guards.seeds, func(ctx context.Context) ([]string, error) {
				return e.interactions.ImplementedItems(ctx, req.UserID, req.Category)
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return &RecommendResponse{Items: ranked, Metadata: meta}, nil
}

// Cluster ranks the neighbourhood of one catalog item: its nearest
// neighbours in its own category plus items it links to with at least
// req.MinWeight, scored with the same blend as Recommend.
func (e *Engine) Cluster(ctx context.Context, req ClusterRequest) (resp *ClusterResponse, err error) {
	start := time.Now()
	defer func() {
		var meta *ResponseMetadata
		if resp != nil {
			meta = &resp.Metadata
		}
		e.observe(ctx, OpCluster, start, meta, err)
	}()

	if strings.TrimSpace(req.ItemID) == "" {
		return nil, invalidf("item id is required")
	}
	if math.IsNaN(req.MinWeight) || math.IsInf(req.MinWeight, 0) || req.MinWeight < 0 {
		return nil, invalidf("min weight must be a finite value >= 0, got %v", req.MinWeight)
	}
	limit, err := e.cfg.limit(req.Limit)
	if err != nil {
		return nil, err
	}
	cat, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	item, ok := cat.Item(req.ItemID)
	if !ok {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, req.ItemID)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	minWeight := req.MinWeight
	ranked, meta, err := e.rank(ctx, cat, rankInput{
		op:           OpCluster,
		category:     item.Category,
		query:        item.Embedding,
		limit:        limit,
		exclude:      item.ID,
		graphOnlyMin: &minWeight,
		seeds: func(context.Context) ([]string, error) {
			return []string{item.ID}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return &ClusterResponse{Item: item, Related: ranked, Metadata: meta}, nil
}

type rankInput struct {
	op       string
	category string
	query    []float32
	limit    int
	seeds    func(ctx context.Context) ([]string, error)

	// exclude drops one item ID from the ranking.
	exclude string

	// graphOnlyMin, when set, adds items reached only through the graph
	// whose score is at least this value, with similarity 0.
	graphOnlyMin *float64
}

// rank runs the vector search concurrently with the seed lookup and graph
// scoring, then blends and orders the candidates.
func (e *Engine) rank(ctx context.Context, cat Catalog, in rankInput) ([]Recommendation, ResponseMetadata, error) {
	meta := ResponseMetadata{SnapshotVersion: cat.Version()}

	var (
		neighbors []Neighbor
		seeds     []string
		scores    map[string]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		neighbors, err = do(gctx, e.guards.index, func(ctx context.Context) ([]Neighbor, error) {
			return cat.SearchVectors(ctx, in.category, in.query, e.cfg.CandidateK)
		})
		return err
	})
	g.Go(func() error {
		s, sc, err := e.graphSignal(gctx, cat, in)
		if err == nil {
			seeds, scores = s, sc
			return nil
		}
		if e.cfg.GraphOptional && !errors.Is(err, ErrTimeout) {
			e.logger.Warn().Err(err).Str("operation", in.op).Str("category", in.category).
				Msg("Graph signal unavailable, ranking on similarity only")
			meta.Degraded = true
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			// Nothing indexed in this category.
			meta.Degraded = false
			return []Recommendation{}, meta, nil
		case ctx.Err() != nil && !errors.Is(err, ErrTimeout):
			return nil, meta, timeoutError(in.op, ctx.Err())
		default:
			return nil, meta, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, meta, timeoutError(in.op, err)
	}

	meta.Seeds = len(seeds)
	ranked := make([]Recommendation, 0, len(neighbors))
	included := make(map[string]struct{}, len(neighbors))
	for _, n := range neighbors {
		if n.Item.ID == in.exclude || n.Item.Category != in.category {
			continue
		}
		if _, dup := included[n.Item.ID]; dup {
			continue
		}
		included[n.Item.ID] = struct{}{}
		ranked = append(ranked, e.blend(n.Item, 1-n.Distance, scores[n.Item.ID]))
	}

	if in.graphOnlyMin != nil {
		for id, weight := range scores {
			if _, dup := included[id]; dup || id == in.exclude || weight < *in.graphOnlyMin {
				continue
			}
			item, ok := cat.Item(id)
			if !ok || item.Category != in.category {
				continue
			}
			included[id] = struct{}{}
			ranked = append(ranked, e.blend(item, 0, weight))
		}
	}
	meta.Candidates = len(ranked)

	sortRecommendations(ranked)
	if len(ranked) > in.limit {
		ranked = ranked[:in.limit]
	}
	return ranked, meta, nil
}

// graphSignal resolves the seed set and, when it is non-empty, the graph
// scores reachable from it.
func (e *Engine) graphSignal(ctx context.Context, cat Catalog, in rankInput) ([]string, map[string]float64, error) {
	seeds, err := in.seeds(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(seeds) == 0 {
		return seeds, map[string]float64{}, nil
	}
	scores, err := do(ctx, e.guards.graph, func(ctx context.Context) (map[string]float64, error) {
		return cat.GraphScores(ctx, seeds, in.category)
	})
	if err != nil {
		return nil, nil, err
	}
	return seeds, scores, nil
}

func (e *Engine) blend(item RecommendationItem, similarity, graphScore float64) Recommendation {
	return Recommendation{
		Item:       item,
		Similarity: similarity,
		GraphScore: graphScore,
		Score:      e.cfg.SimilarityWeight*similarity + e.cfg.GraphWeight*graphScore,
	}
}

// sortRecommendations orders by combined score desc, then item ID.
func sortRecommendations(recs []Recommendation) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Item.ID < recs[j].Item.ID
	})
}

func (e *Engine) validateRecommend(req RecommendRequest) (int, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return 0, invalidf("user id is required")
	}
	if err := validateCategory(req.Category); err != nil {
		return 0, err
	}
	if len(req.Query) != e.cfg.Dimension {
		return 0, invalidf("query vector has %d dimensions, want %d", len(req.Query), e.cfg.Dimension)
	}
	var norm float64
	for i, v := range req.Query {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, invalidf("query vector component %d is not finite", i)
		}
		norm += f * f
	}
	if norm == 0 {
		return 0, invalidf("query vector has zero norm")
	}
	return e.cfg.limit(req.Limit)
}

func validateCategory(category string) error {
	if !validation.CategoryPattern.MatchString(category) {
		return invalidf("malformed category %q", category)
	}
	return nil
}

func (e *Engine) snapshot() (Catalog, error) {
	cat := e.catalogs.Current()
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog not loaded", ErrUpstreamUnavailable)
	}
	return cat, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= e.cfg.RequestTimeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.RequestTimeout)
}

func metadataOf(resp *RecommendResponse) *ResponseMetadata {
	if resp == nil {
		return nil
	}
	return &resp.Metadata
}

func (e *Engine) observe(ctx context.Context, op string, start time.Time, meta *ResponseMetadata, err error) {
	duration := time.Since(start)
	outcome := metrics.OutcomeSuccess
	candidates := 0
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
	case meta != nil && meta.Degraded:
		outcome = metrics.OutcomeDegraded
	}
	if meta != nil {
		candidates = meta.Candidates
	}
	metrics.RecordRanking(op, outcome, candidates, duration)

	if err != nil {
		e.logger.Debug().Err(err).Str("operation", op).Str("kind", string(KindOf(err))).
			Str("request_id", logging.RequestIDFromContext(ctx)).Dur("duration", duration).Msg("Ranking failed")
	}
}
