// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package fuzzy

import (
	"math"
	"testing"
)

func TestTrigrams(t *testing.T) {
	t.Parallel()

	got := Trigrams("Cat")
	for _, want := range []string{"  c", " ca", "cat", "at "} {
		if _, ok := got[want]; !ok {
			t.Errorf("missing trigram %q in %v", want, got)
		}
	}
	if len(got) != 4 {
		t.Errorf("expected 4 trigrams, got %d", len(got))
	}

	multi := Trigrams("oat-milk")
	if _, ok := multi["  m"]; !ok {
		t.Errorf("expected each word padded separately, got %v", multi)
	}
	if len(Trigrams("  !!  ")) != 0 {
		t.Error("punctuation only should yield no trigrams")
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"chicken", "chicken", 1},
		{"Oats", "oats", 1},
		{"chicken", "chickpea", 5.0 / 12.0},
		{"", "chicken", 0},
		{"salmon", "xyz", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	if Similarity("greek yogurt", "yogurt greek") != 1 {
		t.Error("word order should not matter for trigram sets")
	}
}

func TestIndexMatch(t *testing.T) {
	t.Parallel()

	ix := NewIndex([]Entry{
		{ID: "f3", Name: "Chickpea Curry"},
		{ID: "f1", Name: "Chicken Breast"},
		{ID: "f2", Name: "Chicken"},
		{ID: "f4", Name: "Brown Rice"},
		{ID: "f5", Name: "chicken"},
	})

	got := ix.Match("chicken", 0.3, 10)
	if len(got) < 3 {
		t.Fatalf("expected at least 3 matches, got %+v", got)
	}
	// Exact name matches tie at 1.0 and are ordered by name, then ID.
	if got[0].ID != "f2" || got[1].ID != "f5" {
		t.Errorf("unexpected leading matches %+v", got[:2])
	}
	if got[2].ID != "f1" {
		t.Errorf("expected Chicken Breast third, got %+v", got[2])
	}
	for _, m := range got {
		if m.ID == "f4" {
			t.Error("Brown Rice should not match chicken")
		}
		if m.Similarity <= 0.3 {
			t.Errorf("match %+v does not exceed threshold", m)
		}
	}

	if limited := ix.Match("chicken", 0.3, 1); len(limited) != 1 || limited[0].ID != "f2" {
		t.Errorf("limit not applied: %+v", limited)
	}
	if none := ix.Match("!!", 0.3, 5); len(none) != 0 {
		t.Errorf("expected no matches for empty trigram set, got %+v", none)
	}
}

func TestIndexMatch_ThresholdIsStrict(t *testing.T) {
	t.Parallel()

	ix := NewIndex([]Entry{{ID: "x", Name: "chickpea"}})
	exact := Similarity("chicken", "chickpea")

	if got := ix.Match("chicken", exact, 5); len(got) != 0 {
		t.Errorf("similarity equal to threshold must be excluded, got %+v", got)
	}
	if got := ix.Match("chicken", exact-1e-9, 5); len(got) != 1 {
		t.Errorf("expected a match just above threshold, got %+v", got)
	}
}
