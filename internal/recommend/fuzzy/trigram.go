// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package fuzzy implements trigram name similarity compatible with
// PostgreSQL pg_trgm, plus an inverted trigram index for matching a search
// term against a catalog of names.
//
// A string is lower-cased and split into words of letters and digits. Each
// word is padded with two leading spaces and one trailing space, and every
// three-rune window of the padded word is a trigram. Similarity is
// |A ∩ B| / |A ∪ B| over the two trigram sets, in [0, 1].
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
)

// Trigrams returns the distinct trigrams of s.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range words(s) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Similarity returns the trigram similarity of a and b. Two strings without
// any trigram (empty or punctuation only) have similarity 0.
func Similarity(a, b string) float64 {
	return jaccard(Trigrams(a), Trigrams(b))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// Entry is one searchable name.
type Entry struct {
	ID   string
	Name string
}

// Match is an entry scored against a term.
type Match struct {
	ID         string
	Name       string
	Similarity float64
}

// Index maps trigrams to the entries containing them. It is immutable after
// NewIndex and safe for concurrent use.
type Index struct {
	entries  []Entry
	grams    []map[string]struct{}
	postings map[string][]int
}

// NewIndex indexes entries. Entries whose names produce no trigram are kept
// but can never match.
func NewIndex(entries []Entry) *Index {
	ix := &Index{
		entries:  make([]Entry, len(entries)),
		grams:    make([]map[string]struct{}, len(entries)),
		postings: make(map[string][]int),
	}
	copy(ix.entries, entries)
	sort.Slice(ix.entries, func(i, j int) bool { return ix.entries[i].ID < ix.entries[j].ID })

	for i, e := range ix.entries {
		ix.grams[i] = Trigrams(e.Name)
		for g := range ix.grams[i] {
			ix.postings[g] = append(ix.postings[g], i)
		}
	}
	return ix
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Match returns up to limit entries whose similarity to term strictly
// exceeds threshold, ordered by similarity desc, name asc, ID asc. Only
// entries sharing at least one trigram with term are scored.
func (ix *Index) Match(term string, threshold float64, limit int) []Match {
	if limit <= 0 {
		return []Match{}
	}
	query := Trigrams(term)
	if len(query) == 0 {
		return []Match{}
	}

	shared := make(map[int]int)
	for g := range query {
		for _, i := range ix.postings[g] {
			shared[i]++
		}
	}

	matches := make([]Match, 0, len(shared))
	for i, n := range shared {
		sim := float64(n) / float64(len(query)+len(ix.grams[i])-n)
		if sim > threshold {
			matches = append(matches, Match{ID: ix.entries[i].ID, Name: ix.entries[i].Name, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
