package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManagerRecords(t *testing.T) {
	m := New(WithNamespace("test"))

	m.RecordRefine(RefineAI, 2*time.Second)
	m.RecordRefine(RefineTimeout, 0)
	m.RecordRefine(RefineTimeout, 0)
	m.RecordRemoteFailure("requests", "upsert")
	m.RecordCacheCorruption("nannies")
	m.RecordChange("created")
	m.ObserveShortlist(25)

	if got := testutil.ToFloat64(m.refineOutcomes.WithLabelValues(RefineTimeout)); got != 2 {
		t.Fatalf("expected 2 timeouts, got %v", got)
	}
	if got := testutil.ToFloat64(m.remoteFailures.WithLabelValues("requests", "upsert")); got != 1 {
		t.Fatalf("expected 1 remote failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheCorruptions.WithLabelValues("nannies")); got != 1 {
		t.Fatalf("expected 1 corruption, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "test_lifecycle_changes_total") {
		t.Fatalf("expected lifecycle counter in exposition, got:\n%s", body)
	}
}

func TestNilManagerIsSafe(t *testing.T) {
	var m *Manager

	m.RecordRefine(RefineAI, time.Second)
	m.ObserveShortlist(1)
	m.RecordRemoteFailure("a", "b")
	m.RecordCacheCorruption("a")
	m.RecordChange("updated")

	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil manager handler, got %d", rec.Code)
	}
}
