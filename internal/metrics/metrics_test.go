package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/eclipse/merge", "/api/v1/eclipse/merge"},
		{"/api/v1/eclipse/report", "/api/v1/eclipse/report"},
		{"/api/v1/stop/search", "/api/v1/stop/search"},

		// Parameterized search routes collapse to one label.
		{"/api/v1/stop/search/25544", "/api/v1/stop/search/{norad_id}"},
		{"/api/v1/stop/search/44713", "/api/v1/stop/search/{norad_id}"},
		{"/api/v1/stop/stream/25544", "/api/v1/stop/stream/{norad_id}"},
		{"/api/v1/stop/params", "/api/v1/stop/params"},
		{"/api/v1/passes/25544", "/api/v1/passes/{norad_id}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/api/v2/something", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeRoute(tt.path))
		})
	}
}

// TestMetricsCardinality verifies that 100 unique NORAD IDs produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		seen[normalizeRoute("/api/v1/stop/search/"+strconv.Itoa(25000+i))] = true
	}
	assert.Len(t, seen, 1)
}

func TestRecordCrossing(t *testing.T) {
	before := testutil.ToFloat64(stopCrossingsTotal.WithLabelValues("value"))
	RecordCrossing("value")
	RecordCrossing("value")
	assert.Equal(t, before+2, testutil.ToFloat64(stopCrossingsTotal.WithLabelValues("value")))
}

func TestRecordMerge(t *testing.T) {
	rawBefore := testutil.ToFloat64(eclipseRawEventsTotal)
	totalBefore := testutil.ToFloat64(eclipseTotalEventsTotal)
	RecordMerge(3, 2)
	assert.Equal(t, rawBefore+3, testutil.ToFloat64(eclipseRawEventsTotal))
	assert.Equal(t, totalBefore+2, testutil.ToFloat64(eclipseTotalEventsTotal))
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	c := httpRequestsTotal.WithLabelValues("other", http.MethodGet, "418")
	before := testutil.ToFloat64(c)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestStreamGauge(t *testing.T) {
	before := testutil.ToFloat64(streamsActive)
	IncStreamsActive()
	assert.Equal(t, before+1, testutil.ToFloat64(streamsActive))
	DecStreamsActive()
	assert.Equal(t, before, testutil.ToFloat64(streamsActive))
}

func TestSetTLEDataset(t *testing.T) {
	SetTLEDataset(42, 120)
	assert.Equal(t, 42.0, testutil.ToFloat64(tleDatasetSize))
	assert.Equal(t, 120.0, testutil.ToFloat64(tleDatasetAge))
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		flushed = ok
		if ok {
			f.Flush()
		}
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stop/stream/1", nil))
	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}
