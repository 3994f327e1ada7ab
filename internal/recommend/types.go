// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package recommend

import (
	"time"
)

// RecommendationItem is a catalog entry that can be recommended.
// Embedding is omitted from JSON; it is large and only the ranker needs it.
type RecommendationItem struct {
	ID        string         `json:"id"`
	Category  string         `json:"category"`
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Embedding []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// GraphEdge is a typed, weighted, directed relationship between two items.
type GraphEdge struct {
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     string         `json:"type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DefaultEdgeWeight applies when an edge is created without a weight.
const DefaultEdgeWeight = 1.0

// UsageRecord is a user's aggregated selections of one searchable item.
type UsageRecord struct {
	UserID   string    `json:"user_id"`
	ItemID   string    `json:"item_id"`
	ItemType string    `json:"item_type"`
	UseCount int64     `json:"use_count"`
	LastUsed time.Time `json:"last_used"`
}

// SearchableItem is the capability shared by everything the suggestion
// resolver can name. The ranking core never inspects the concrete kind.
type SearchableItem interface {
	ItemID() string
	ItemName() string
	ItemCategory() string
}

// Searchable categories.
const (
	CategoryFood     = "food"
	CategoryExercise = "exercise"
)

// FoodItem is a nutrition catalog entry.
type FoodItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Brand         string  `json:"brand,omitempty"`
	Calories      float64 `json:"calories"`
	ProteinGrams  float64 `json:"protein_g"`
	CarbsGrams    float64 `json:"carbs_g"`
	FatGrams      float64 `json:"fat_g"`
	ServingSize   float64 `json:"serving_size"`
	ServingUnit   string  `json:"serving_unit"`
	IsUserCreated bool    `json:"is_user_created"`
}

func (f FoodItem) ItemID() string       { return f.ID }
func (f FoodItem) ItemName() string     { return f.Name }
func (f FoodItem) ItemCategory() string { return CategoryFood }

// Exercise is a workout catalog entry.
type Exercise struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	MuscleGroups []string `json:"muscle_groups,omitempty"`
	Equipment    []string `json:"equipment,omitempty"`
	MET          float64  `json:"met,omitempty"`
}

func (e Exercise) ItemID() string       { return e.ID }
func (e Exercise) ItemName() string     { return e.Name }
func (e Exercise) ItemCategory() string { return CategoryExercise }

// RecommendRequest asks for items of one category close to Query.
// Limit 0 means the configured default.
type RecommendRequest struct {
	UserID   string    `json:"user_id"`
	Category string    `json:"category"`
	Query    []float32 `json:"query_vector"`
	Limit    int       `json:"limit"`
}

// Recommendation is one ranked item with its score components.
type Recommendation struct {
	Item       RecommendationItem `json:"item"`
	Similarity float64            `json:"similarity"`
	GraphScore float64            `json:"graph_score"`
	Score      float64            `json:"score"`
}

// ResponseMetadata describes how a ranking was produced.
type ResponseMetadata struct {
	SnapshotVersion uint64 `json:"snapshot_version"`
	Candidates      int    `json:"candidates"`
	Seeds           int    `json:"seeds"`
	Degraded        bool   `json:"degraded"`
}

// RecommendResponse holds ranked recommendations, best first.
type RecommendResponse struct {
	Items    []Recommendation `json:"items"`
	Metadata ResponseMetadata `json:"metadata"`
}

// SuggestRequest asks for autocomplete suggestions for Term.
type SuggestRequest struct {
	UserID   string `json:"user_id"`
	Term     string `json:"term"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

// Suggestion sources.
const (
	SourceHistory = "history"
	SourceCatalog = "catalog"
)

// Suggestion is one autocomplete entry.
type Suggestion struct {
	ItemID     string     `json:"item_id"`
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	UseCount   int64      `json:"use_count"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	Similarity float64    `json:"similarity"`
	Source     string     `json:"source"`
}

// SuggestResponse holds suggestions ordered by use count then similarity.
type SuggestResponse struct {
	Suggestions []Suggestion     `json:"suggestions"`
	Metadata    ResponseMetadata `json:"metadata"`
}

// ClusterRequest asks for the neighbourhood of one catalog item.
type ClusterRequest struct {
	ItemID    string  `json:"item_id"`
	MinWeight float64 `json:"min_weight"`
	Limit     int     `json:"limit"`
}

// ClusterResponse holds the item's neighbours, best first.
type ClusterResponse struct {
	Item     RecommendationItem `json:"item"`
	Related  []Recommendation   `json:"related"`
	Metadata ResponseMetadata   `json:"metadata"`
}
