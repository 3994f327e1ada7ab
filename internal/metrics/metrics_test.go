// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("select", "graph_edges_test"))

	RecordDBQuery("select", "graph_edges_test", 3*time.Millisecond, nil)
	RecordDBQuery("select", "graph_edges_test", 3*time.Millisecond, errors.New("io"))

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("select", "graph_edges_test"))
	if after-before != 1 {
		t.Errorf("expected one error recorded, got %v", after-before)
	}
}

func TestRecordRanking(t *testing.T) {
	tests := []struct {
		name         string
		outcome      string
		wantDegraded float64
	}{
		{"success", OutcomeSuccess, 0},
		{"degraded", OutcomeDegraded, 1},
		{"timeout", "timeout", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := "recommend_test_" + tt.name
			RecordRanking(op, tt.outcome, 7, time.Millisecond)

			if got := testutil.ToFloat64(RankingRequests.WithLabelValues(op, tt.outcome)); got != 1 {
				t.Errorf("ranking_requests_total = %v, want 1", got)
			}
			if got := testutil.ToFloat64(DegradedResponses.WithLabelValues(op)); got != tt.wantDegraded {
				t.Errorf("ranking_degraded_total = %v, want %v", got, tt.wantDegraded)
			}
		})
	}
}

func TestRecordLedgerWrite(t *testing.T) {
	RecordLedgerWrite("usage_test", true, nil)
	RecordLedgerWrite("usage_test", false, nil)
	RecordLedgerWrite("usage_test", false, errors.New("disk"))

	for _, outcome := range []string{"applied", "duplicate", OutcomeError} {
		if got := testutil.ToFloat64(LedgerWrites.WithLabelValues("usage_test", outcome)); got != 1 {
			t.Errorf("ledger_writes_total{outcome=%q} = %v, want 1", outcome, got)
		}
	}
}

func TestUpdateCatalogGauges(t *testing.T) {
	UpdateCatalogGauges(3, map[string]int{"nutrition": 4, "sleep": 2}, 9)

	if got := testutil.ToFloat64(CatalogItems.WithLabelValues("nutrition")); got != 4 {
		t.Errorf("catalog_items{nutrition} = %v, want 4", got)
	}
	if got := testutil.ToFloat64(CatalogEdges); got != 9 {
		t.Errorf("catalog_edges = %v, want 9", got)
	}

	UpdateCatalogGauges(4, map[string]int{"sleep": 1}, 0)
	if got := testutil.CollectAndCount(CatalogItems); got != 1 {
		t.Errorf("expected stale categories to be reset, got %d series", got)
	}
	if got := testutil.ToFloat64(CatalogVersion); got != 4 {
		t.Errorf("catalog_snapshot_version = %v, want 4", got)
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("graph_test", 2)
	if got := testutil.ToFloat64(BreakerState.WithLabelValues("graph_test")); got != 2 {
		t.Errorf("ranking_breaker_state = %v, want 2", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active = %v, want %v", got, before)
	}
}
