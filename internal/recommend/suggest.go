// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Suggest merges the user's previously used items with catalog items whose
// name resembles req.Term. Previously used items lead; they are not filtered
// by the term.
func (e *Engine) Suggest(ctx context.Context, req SuggestRequest) (resp *SuggestResponse, err error) {
	start := time.Now()
	defer func() {
		var meta *ResponseMetadata
		if resp != nil {
			meta = &resp.Metadata
		}
		e.observe(ctx, OpSuggest, start, meta, err)
	}()

	term, limit, err := e.validateSuggest(req)
	if err != nil {
		return nil, err
	}
	cat, err := e.snapshot()
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var history, matches []Suggestion
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = e.historySuggestions(gctx, cat, req.UserID, req.Category, limit)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = e.catalogSuggestions(gctx, cat, term, req.Category, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrTimeout) {
			return nil, timeoutError(OpSuggest, ctx.Err())
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, timeoutError(OpSuggest, err)
	}

	merged := mergeSuggestions(history, matches)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return &SuggestResponse{
		Suggestions: merged,
		Metadata: ResponseMetadata{
			SnapshotVersion: cat.Version(),
			Candidates:      len(history) + len(matches),
		},
	}, nil
}

// historySuggestions turns usage records into suggestions. Records whose
// item left the catalog are dropped.
func (e *Engine) historySuggestions(ctx context.Context, cat Catalog, userID, category string, limit int) ([]Suggestion, error) {
	records, err := do(ctx, e.guards.usage, func(ctx context.Context) ([]UsageRecord, error) {
		return e.interactions.UsageHistory(ctx, userID, category, limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(records))
	for _, rec := range records {
		item, ok := cat.Searchable(category, rec.ItemID)
		if !ok {
			continue
		}
		lastUsed := rec.LastUsed
		out = append(out, Suggestion{
			ItemID:     item.ItemID(),
			Name:       item.ItemName(),
			Category:   item.ItemCategory(),
			UseCount:   rec.UseCount,
			LastUsed:   &lastUsed,
			Similarity: 1.0,
			Source:     SourceHistory,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (e *Engine) catalogSuggestions(ctx context.Context, cat Catalog, term, category string, limit int) ([]Suggestion, error) {
	found, err := do(ctx, e.guards.names, func(ctx context.Context) ([]NameMatch, error) {
		return cat.MatchNames(ctx, term, category, e.cfg.SimilarityThreshold, limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(found))
	for _, m := range found {
		if m.Similarity <= e.cfg.SimilarityThreshold {
			continue
		}
		out = append(out, Suggestion{
			ItemID:     m.Item.ItemID(),
			Name:       m.Item.ItemName(),
			Category:   m.Item.ItemCategory(),
			Similarity: m.Similarity,
			Source:     SourceCatalog,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// mergeSuggestions deduplicates by displayed name, keeping the entry with
// the higher use count and then the higher similarity, and orders the
// survivors by use count desc, similarity desc, name, ID.
func mergeSuggestions(branches ...[]Suggestion) []Suggestion {
	byName := make(map[string]Suggestion)
	for _, branch := range branches {
		for _, s := range branch {
			key := nameKey(s.Name)
			current, ok := byName[key]
			if !ok || outranks(s, current) {
				byName[key] = s
			}
		}
	}

	out := make([]Suggestion, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return outranks(out[i], out[j]) })
	return out
}

// outranks is the total order on suggestions.
func outranks(a, b Suggestion) bool {
	if a.UseCount != b.UseCount {
		return a.UseCount > b.UseCount
	}
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ItemID < b.ItemID
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (e *Engine) validateSuggest(req SuggestRequest) (string, int, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", 0, invalidf("user id is required")
	}
	if err := validateCategory(req.Category); err != nil {
		return "", 0, err
	}
	term := strings.TrimSpace(req.Term)
	if term == "" {
		return "", 0, invalidf("search term is required")
	}
	if len(term) > e.cfg.MaxTermLength {
		return "", 0, invalidf("search term exceeds %d bytes", e.cfg.MaxTermLength)
	}
	limit, err := e.cfg.limit(req.Limit)
	if err != nil {
		return "", 0, err
	}
	return term, limit, nil
}
