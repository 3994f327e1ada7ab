// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package vectorindex provides an in-memory cosine nearest-neighbour index
// for one category of recommendation embeddings.
//
// Small collections are scanned exactly. Above Options.ExactThreshold the
// index is partitioned into inverted lists with seeded spherical k-means and
// a query scans the SearchLists closest lists (IVF). Construction sorts entries by
// ID and every loop iterates in index order, so two indexes built from the
// same entries and options return identical results for the same query.
//
// An Index is immutable after Build and safe for concurrent Search calls.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

var (
	// ErrEmpty is returned by Search on an index with no entries.
	ErrEmpty = errors.New("vectorindex: index is empty")

	// ErrDimension is returned when a vector does not match the index dimension.
	ErrDimension = errors.New("vectorindex: dimension mismatch")

	// ErrInvalidVector is returned for zero-norm or non-finite vectors.
	ErrInvalidVector = errors.New("vectorindex: invalid vector")
)

// Entry is one indexed vector.
type Entry struct {
	ID     string
	Vector []float32
}

// Hit is a search result. Distance is cosine distance, 1 - cos(q, v).
type Hit struct {
	ID       string
	Distance float64
}

// Options tunes index construction and search.
type Options struct {
	// ExactThreshold is the entry count below which Search scans exactly.
	ExactThreshold int

	// NumLists is the number of IVF partitions. 0 selects sqrt(n).
	NumLists int

	// SearchLists is the number of partitions visited per query.
	SearchLists int

	// Iterations bounds k-means refinement.
	Iterations int

	// Seed makes centroid initialisation reproducible.
	Seed int64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		ExactThreshold: 2000,
		NumLists:       0,
		SearchLists:    8,
		Iterations:     10,
		Seed:           42,
	}
}

// Index is an immutable cosine index.
type Index struct {
	dim  int
	ids  []string
	vecs [][]float32 // unit length

	// IVF state, nil when exact.
	centroids   [][]float32
	lists       [][]int
	searchLists int
}

// Build creates an index over entries. Every vector must share one dimension,
// be finite, and have a non-zero norm. Duplicate IDs are rejected.
func Build(entries []Entry, opts Options) (*Index, error) {
	if opts.SearchLists <= 0 {
		opts.SearchLists = 1
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 1
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ix := &Index{
		ids:  make([]string, len(sorted)),
		vecs: make([][]float32, len(sorted)),
	}

	for i, e := range sorted {
		if i > 0 && sorted[i-1].ID == e.ID {
			return nil, fmt.Errorf("vectorindex: duplicate id %q", e.ID)
		}
		if i == 0 {
			ix.dim = len(e.Vector)
		} else if len(e.Vector) != ix.dim {
			return nil, fmt.Errorf("%w: entry %q has %d dimensions, want %d", ErrDimension, e.ID, len(e.Vector), ix.dim)
		}
		unit, err := normalize(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.ID, err)
		}
		ix.ids[i] = e.ID
		ix.vecs[i] = unit
	}

	n := len(ix.vecs)
	if n == 0 || n < opts.ExactThreshold {
		return ix, nil
	}

	nlist := opts.NumLists
	if nlist <= 0 {
		nlist = int(math.Round(math.Sqrt(float64(n))))
	}
	if nlist < 1 {
		nlist = 1
	}
	if nlist > n {
		nlist = n
	}
	if nlist == 1 || opts.SearchLists >= nlist {
		return ix, nil
	}

	ix.centroids, ix.lists = kmeans(ix.vecs, nlist, opts.Iterations, opts.Seed)
	ix.searchLists = opts.SearchLists
	return ix, nil
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int { return len(ix.ids) }

// Dim returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dim() int { return ix.dim }

// Exact reports whether Search scans every entry.
func (ix *Index) Exact() bool { return ix.centroids == nil }

// Vector returns a copy of the unit vector stored for id.
func (ix *Index) Vector(id string) ([]float32, bool) {
	i := sort.SearchStrings(ix.ids, id)
	if i >= len(ix.ids) || ix.ids[i] != id {
		return nil, false
	}
	out := make([]float32, ix.dim)
	copy(out, ix.vecs[i])
	return out, true
}

// Search returns up to k entries closest to query, ordered by ascending
// distance with ties broken by ascending ID.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(ix.ids) == 0 {
		return nil, ErrEmpty
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimension, len(query), ix.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	if ix.centroids == nil {
		hits = make([]Hit, len(ix.vecs))
		for i, v := range ix.vecs {
			hits[i] = Hit{ID: ix.ids[i], Distance: 1 - dot(q, v)}
		}
	} else {
		for _, list := range ix.nearestLists(q) {
			for _, i := range ix.lists[list] {
				hits = append(hits, Hit{ID: ix.ids[i], Distance: 1 - dot(q, ix.vecs[i])})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// nearestLists returns the searchLists list indexes whose centroids are closest to q.
func (ix *Index) nearestLists(q []float32) []int {
	order := make([]int, len(ix.centroids))
	scores := make([]float64, len(ix.centroids))
	for c, centroid := range ix.centroids {
		order[c] = c
		scores[c] = dot(q, centroid)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order[:ix.searchLists]
}

// kmeans runs spherical k-means over unit vectors. Initial centroids are a
// seeded sample of distinct points; empty clusters keep their centroid.
func kmeans(vecs [][]float32, k, iterations int, seed int64) ([][]float32, [][]int) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible partitioning, not security
	perm := rng.Perm(len(vecs))

	dim := len(vecs[0])
	centroids := make([][]float32, k)
	for c := 0; c < k; c++ {
		centroids[c] = append([]float32(nil), vecs[perm[c]]...)
	}

	assign := make([]int, len(vecs))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vecs {
			best := nearestCentroid(v, centroids)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vecs {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			next := make([]float32, dim)
			for d := range next {
				next[d] = float32(sums[c][d] / float64(counts[c]))
			}
			if unit, err := normalize(next); err == nil {
				centroids[c] = unit
			}
		}
	}

	lists := make([][]int, k)
	for i, v := range vecs {
		c := nearestCentroid(v, centroids)
		lists[c] = append(lists[c], i)
	}
	return centroids, lists
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestScore := 0, math.Inf(-1)
	for c, centroid := range centroids {
		if s := dot(v, centroid); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) ([]float32, error) {
	var sq float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite component", ErrInvalidVector)
		}
		sq += f * f
	}
	if sq == 0 {
		return nil, fmt.Errorf("%w: zero norm", ErrInvalidVector)
	}
	norm := math.Sqrt(sq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Normalize returns v scaled to unit length. It fails on zero-norm or
// non-finite input.
func Normalize(v []float32) ([]float32, error) {
	return normalize(v)
}
