package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bookclub/internal/metrics"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/books", "200"))
	metrics.RecordAPIRequest("GET", "/api/books", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/books", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordFormation(t *testing.T) {
	before := testutil.ToFloat64(metrics.GroupsFormed.WithLabelValues("manual"))
	metrics.RecordFormation("manual", 4)
	if got := testutil.ToFloat64(metrics.GroupsFormed.WithLabelValues("manual")); got-before != 1 {
		t.Fatalf("expected one manual formation, got %v", got-before)
	}
}
