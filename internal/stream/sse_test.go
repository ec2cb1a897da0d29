package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testStore() *tle.Store {
	store := tle.NewStore()
	store.Set(tle.NewDataset("test", time.Date(2026, 2, 6, 3, 45, 0, 0, time.UTC),
		[]tle.Entry{{NORADID: 25544, Name: "ISS"}}))
	return store
}

// fakeSearcher emits its crossings, then returns err. With block set it
// keeps emitting until the context is cancelled.
type fakeSearcher struct {
	crossings []propagation.Crossing
	err       error
	block     bool

	gotID    int
	gotStops []propagation.StopSpec
}

func (f *fakeSearcher) SearchFunc(ctx context.Context, noradID int, start time.Time, stops []propagation.StopSpec,
	fn func(propagation.Crossing)) (propagation.Result, error) {
	f.gotID, f.gotStops = noradID, stops
	for _, cr := range f.crossings {
		fn(cr)
	}
	if f.block {
		<-ctx.Done()
		return propagation.Result{}, ctx.Err()
	}
	return propagation.Result{NORADID: noradID, Crossings: f.crossings}, f.err
}

func sseMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Fatalf("invalid JSON in SSE data line %q: %v", line, err)
		}
		out = append(out, msg)
	}
	return out
}

func TestHandleCrossings_Stream(t *testing.T) {
	defer goleak.VerifyNone(t)

	at := time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)
	fake := &fakeSearcher{crossings: []propagation.Crossing{
		{Param: "Apoapsis", Occurrence: 1, Time: at, Elapsed: 60},
		{Param: "Apoapsis", Occurrence: 2, Time: at.Add(time.Hour), Elapsed: 3660},
	}}
	h := NewHandler(fake, testStore(), Config{}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stop/stream/25544?param=Sat.Apoapsis&repeat=2&start=2026-02-06T03:59:00Z", nil)
	w := httptest.NewRecorder()
	h.HandleCrossings(w, req, "25544")

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	if fake.gotID != 25544 || len(fake.gotStops) != 1 || fake.gotStops[0].Repeat != 2 {
		t.Errorf("search called with id=%d stops=%+v", fake.gotID, fake.gotStops)
	}

	msgs := sseMessages(t, w.Body.String())
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4: %v", len(msgs), msgs)
	}
	if msgs[0]["type"] != "metadata" || msgs[0]["dataset_epoch"] != "2026-02-06T03:45:00Z" {
		t.Errorf("metadata = %v", msgs[0])
	}
	if msgs[1]["type"] != "crossing" || msgs[1]["occurrence"].(float64) != 1 || msgs[1]["param"] != "Apoapsis" {
		t.Errorf("crossing 1 = %v", msgs[1])
	}
	if msgs[2]["elapsed_secs"].(float64) != 3660 {
		t.Errorf("crossing 2 = %v", msgs[2])
	}
	if msgs[3]["type"] != "done" || msgs[3]["crossings"].(float64) != 2 {
		t.Errorf("done = %v", msgs[3])
	}

	// Lines should be "data: ...", "retry: ...", ":" (keepalive) or empty.
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if line != "" && line != ":" && !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestHandleCrossings_SearchError(t *testing.T) {
	h := NewHandler(&fakeSearcher{err: errors.New("NORAD 7 not in catalog")}, tle.NewStore(), Config{}, testLogger())

	w := httptest.NewRecorder()
	h.HandleCrossings(w, httptest.NewRequest("GET", "/api/v1/stop/stream/7?param=RMAG&goal=7000", nil), "7")

	msgs := sseMessages(t, w.Body.String())
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if _, ok := msgs[0]["dataset_epoch"]; ok {
		t.Error("metadata without a dataset should omit dataset_epoch")
	}
	if msgs[1]["type"] != "error" || !strings.Contains(msgs[1]["error"].(string), "not in catalog") {
		t.Errorf("last message = %v", msgs[1])
	}
}

func TestHandleCrossings_ClientDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeSearcher{block: true, crossings: []propagation.Crossing{{Param: "RMAG", Occurrence: 1}}}
	h := NewHandler(fake, testStore(), Config{KeepaliveInterval: 10 * time.Millisecond}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stop/stream/25544?param=RMAG&goal=7000", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 100*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	h.HandleCrossings(w, req.WithContext(ctx), "25544")

	body := w.Body.String()
	if !strings.Contains(body, ":\n\n") {
		t.Error("expected keepalive comments while the search runs")
	}
	if h.limiter.count("192.0.2.1") != 0 {
		t.Error("limiter slot not released after disconnect")
	}
}

func TestHandleCrossings_BadRequest(t *testing.T) {
	h := NewHandler(&fakeSearcher{}, testStore(), Config{}, testLogger())

	tests := []struct {
		name  string
		id    string
		query string
	}{
		{"bad norad", "abc", "?param=RMAG"},
		{"missing param", "25544", ""},
		{"unknown param", "25544", "?param=Bogus"},
		{"bad goal", "25544", "?param=RMAG&goal=high"},
		{"repeat too large", "25544", "?param=RMAG&repeat=1000"},
		{"bad start", "25544", "?param=RMAG&start=yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleCrossings(w, httptest.NewRequest("GET", "/api/v1/stop/stream/"+tt.id+tt.query, nil), tt.id)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleCrossings_RateLimited(t *testing.T) {
	h := NewHandler(&fakeSearcher{}, testStore(), Config{MaxConcurrentPerIP: 1}, testLogger())
	h.limiter.acquire("192.0.2.1")

	w := httptest.NewRecorder()
	h.HandleCrossings(w, httptest.NewRequest("GET", "/api/v1/stop/stream/25544?param=RMAG", nil), "25544")

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 1000)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	// Releasing an unknown IP must not drive counts negative.
	limiter.release("10.9.9.9")
	if limiter.count("10.9.9.9") != 0 || limiter.total != 4 {
		t.Errorf("count = %d total = %d", limiter.count("10.9.9.9"), limiter.total)
	}
}

func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(10, 2)
	limiter.acquire("a")
	limiter.acquire("b")
	if limiter.acquire("c") {
		t.Error("global cap should reject a third stream")
	}
}

func TestCrossingMessageJSON(t *testing.T) {
	data, err := json.Marshal(crossingMessage{Type: "crossing", Crossing: propagation.Crossing{Param: "TA", Goal: 90, Occurrence: 1}})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed["type"] != "crossing" || parsed["param"] != "TA" || parsed["goal"].(float64) != 90 {
		t.Errorf("parsed = %v", parsed)
	}
}
