// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package graph holds the directed, weighted relationship graph between
// recommendation items and the one-hop score propagation used by ranking.
//
// A Graph is immutable after New and safe for concurrent use.
package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// DefaultMaxPathDepth bounds ShortestPath when no depth is given.
const DefaultMaxPathDepth = 3

// ErrInvalidEdge is returned by New for a malformed edge.
var ErrInvalidEdge = errors.New("graph: invalid edge")

// Edge is a typed, weighted, directed relationship.
type Edge struct {
	Source string
	Target string
	Type   string
	Weight float64
}

// IsSelfLoop reports whether the edge points back at its source.
func (e Edge) IsSelfLoop() bool { return e.Source == e.Target }

// Graph is an adjacency list keyed by source ID. Outgoing edges are kept
// sorted by weight desc, target asc, type asc.
type Graph struct {
	out   map[string][]Edge
	edges int
}

// New builds a graph. Edges need non-empty endpoints and a finite weight
// >= 0. Parallel edges between one pair are kept; each contributes.
func New(edges []Edge) (*Graph, error) {
	g := &Graph{out: make(map[string][]Edge)}
	for i, e := range edges {
		if e.Source == "" || e.Target == "" {
			return nil, fmt.Errorf("%w: edge %d has an empty endpoint", ErrInvalidEdge, i)
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
			return nil, fmt.Errorf("%w: edge %s->%s has weight %v", ErrInvalidEdge, e.Source, e.Target, e.Weight)
		}
		g.out[e.Source] = append(g.out[e.Source], e)
		g.edges++
	}
	for _, list := range g.out {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Weight != list[j].Weight {
				return list[i].Weight > list[j].Weight
			}
			if list[i].Target != list[j].Target {
				return list[i].Target < list[j].Target
			}
			return list[i].Type < list[j].Type
		})
	}
	return g, nil
}

// Len returns the number of edges.
func (g *Graph) Len() int { return g.edges }

// Propagate returns, for every target accepted by accept, the sum of the
// weights of edges leading to it from any seed. Seeds are deduplicated and
// self-loops never contribute. Targets with no seed edge are absent.
// A nil accept admits every target.
func (g *Graph) Propagate(seeds []string, accept func(target string) bool) map[string]float64 {
	scores := make(map[string]float64)
	seen := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if _, dup := seen[seed]; dup {
			continue
		}
		seen[seed] = struct{}{}

		for _, e := range g.out[seed] {
			if e.IsSelfLoop() {
				continue
			}
			if accept != nil && !accept(e.Target) {
				continue
			}
			scores[e.Target] += e.Weight
		}
	}
	return scores
}

// Related returns outgoing edges of id, optionally filtered by type,
// excluding self-loops, strongest first. limit <= 0 returns all.
func (g *Graph) Related(id, edgeType string, limit int) []Edge {
	var out []Edge
	for _, e := range g.out[id] {
		if e.IsSelfLoop() || (edgeType != "" && e.Type != edgeType) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ShortestPath returns the edges of a minimum-hop directed path from one
// item to another, using at most maxDepth hops. Among equal-length paths the
// one found first in adjacency order wins, so the result is deterministic.
func (g *Graph) ShortestPath(from, to string, maxDepth int) ([]Edge, bool) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}
	if from == to {
		return []Edge{}, true
	}

	via := map[string]Edge{}
	visited := map[string]struct{}{from: {}}
	frontier := []string{from}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			for _, e := range g.out[node] {
				if _, seen := visited[e.Target]; seen {
					continue
				}
				visited[e.Target] = struct{}{}
				via[e.Target] = e
				if e.Target == to {
					return unwind(via, from, to), true
				}
				next = append(next, e.Target)
			}
		}
		frontier = next
	}
	return nil, false
}

func unwind(via map[string]Edge, from, to string) []Edge {
	var path []Edge
	for node := to; node != from; {
		e := via[node]
		path = append(path, e)
		node = e.Source
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
