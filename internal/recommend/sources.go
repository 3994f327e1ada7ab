// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"context"
)

// Neighbor is a nearest-neighbour hit. Distance is cosine distance in [0, 2].
type Neighbor struct {
	Item     RecommendationItem
	Distance float64
}

// NameMatch is a searchable item whose name resembles a search term.
type NameMatch struct {
	Item       SearchableItem
	Similarity float64
}

// VectorSearcher returns up to k items of category ordered by ascending
// distance, ties by ID. An empty category fails with ErrNotFound.
type VectorSearcher interface {
	SearchVectors(ctx context.Context, category string, query []float32, k int) ([]Neighbor, error)
}

// GraphScorer returns the one-hop propagated weight from seeds into every
// reachable item of category. Unreachable items are absent.
type GraphScorer interface {
	GraphScores(ctx context.Context, seeds []string, category string) (map[string]float64, error)
}

// NameMatcher finds searchable items by fuzzy name similarity.
type NameMatcher interface {
	// MatchNames returns at most limit items of category whose similarity
	// strictly exceeds threshold, ordered by similarity desc, name, ID.
	MatchNames(ctx context.Context, term, category string, threshold float64, limit int) ([]NameMatch, error)

	// Searchable looks up one searchable item of category by ID.
	Searchable(category, id string) (SearchableItem, bool)
}

// Catalog is one immutable snapshot of everything the engine reads from the
// content catalog.
type Catalog interface {
	VectorSearcher
	GraphScorer
	NameMatcher

	// Version identifies the snapshot; it increases on every reload.
	Version() uint64

	// Item looks up a recommendation item, including its embedding.
	Item(id string) (RecommendationItem, bool)
}

// CatalogSource hands out the current snapshot. Current returns nil until
// the first snapshot is loaded.
type CatalogSource interface {
	Current() Catalog
}

// Interactions is the read side of the interaction ledger.
type Interactions interface {
	// ImplementedItems returns IDs the user marked implemented in category.
	ImplementedItems(ctx context.Context, userID, category string) ([]string, error)

	// UsageHistory returns the user's usage in category ordered by
	// use count desc, last used desc.
	UsageHistory(ctx context.Context, userID, category string, limit int) ([]UsageRecord, error)
}
