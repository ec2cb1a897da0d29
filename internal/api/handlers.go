package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/star/trajevent/internal/config"
	"github.com/star/trajevent/internal/eclipse"
	"github.com/star/trajevent/internal/httputil"
	"github.com/star/trajevent/internal/passes"
	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/tle"
)

const (
	maxBodyBytes = 1 << 20
	// maxBatchJobs bounds POST /api/v1/stop/search.
	maxBatchJobs = 100
	// maxStopsPerJob bounds the number of conditions in one search.
	maxStopsPerJob = 16
)

type handlers struct {
	logger         *slog.Logger
	store          *tle.Store
	catalog        *propagation.Catalog
	secondsPerUnit float64
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// mergeResponse is the JSON form of a merge run.
type mergeResponse struct {
	RunID            string               `json:"run_id"`
	Spacecraft       string               `json:"spacecraft,omitempty"`
	IndividualEvents int                  `json:"individual_events"`
	TotalEvents      int                  `json:"total_events"`
	MaxIndex         int                  `json:"max_index"`
	MaxDuration      float64              `json:"max_duration"`
	Events           []eclipse.TotalEvent `json:"events"`
}

func (h *handlers) decodeEvents(w http.ResponseWriter, r *http.Request) (*config.EventsFile, bool) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
		return nil, false
	}
	f, err := config.ParseEventsJSON(body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	return f, true
}

// POST /api/v1/eclipse/merge
func (h *handlers) merge(w http.ResponseWriter, r *http.Request) {
	f, ok := h.decodeEvents(w, r)
	if !ok {
		return
	}
	res := eclipse.Merge(f.RawEvents())

	resp := mergeResponse{
		RunID:            uuid.New().String(),
		Spacecraft:       f.Spacecraft,
		IndividualEvents: res.IndividualCount(),
		TotalEvents:      res.Len(),
		MaxIndex:         res.MaxIndex,
		MaxDuration:      res.MaxDuration,
		Events:           res.Events,
	}
	if resp.Events == nil {
		resp.Events = []eclipse.TotalEvent{}
	}
	h.logger.Info("eclipse merge",
		"component", "api",
		"run_id", resp.RunID,
		"request_id", RequestIDFromContext(r.Context()),
		"raw_events", resp.IndividualEvents,
		"total_events", resp.TotalEvents,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// POST /api/v1/eclipse/report
func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	f, ok := h.decodeEvents(w, r)
	if !ok {
		return
	}
	res := eclipse.Merge(f.RawEvents())

	var buf bytes.Buffer
	if err := f.Report(h.secondsPerUnit).Write(&buf, res); err != nil {
		h.logger.Error("report render failed", "component", "api", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "report render failed", nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// searchRequest is the body of a single-satellite search.
type searchRequest struct {
	Start time.Time              `json:"start"`
	Stops []propagation.StopSpec `json:"stops"`
}

// batchJob is one entry of a batch search.
type batchJob struct {
	NORADID int `json:"norad_id"`
	searchRequest
}

type batchRequest struct {
	Jobs []batchJob `json:"jobs"`
}

// searchResult is a propagation.Result with its error rendered.
type searchResult struct {
	propagation.Result
	Error string `json:"error,omitempty"`
}

type batchResponse struct {
	Results []searchResult `json:"results"`
	Success int            `json:"success"`
	Errors  int            `json:"errors"`
}

func (req *searchRequest) validate() error {
	if len(req.Stops) == 0 {
		return errors.New("at least one stop is required")
	}
	if len(req.Stops) > maxStopsPerJob {
		return fmt.Errorf("too many stops (%d), max %d", len(req.Stops), maxStopsPerJob)
	}
	for i, s := range req.Stops {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stops[%d]: %w", i, err)
		}
		if s.Repeat < 0 || s.Repeat > 100 {
			return fmt.Errorf("stops[%d]: repeat must be 0-100", i)
		}
	}
	if req.Start.IsZero() {
		req.Start = time.Now().UTC().Truncate(time.Second)
	}
	return nil
}

func newSearchResult(r propagation.Result) searchResult {
	sr := searchResult{Result: r}
	if sr.Crossings == nil {
		sr.Crossings = []propagation.Crossing{}
	}
	if r.Err != nil {
		sr.Error = r.Err.Error()
	}
	return sr
}

// POST /api/v1/stop/search/{norad_id}
func (h *handlers) searchSingle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "norad_id"))
	if err != nil || id < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid NORAD ID", nil)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
		return
	}
	var req searchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	res, err := h.catalog.Search(r.Context(), id, req.Start, req.Stops)
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	case errors.Is(err, propagation.ErrNotInCatalog):
		httputil.WriteError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	res.Err = err
	if err != nil {
		h.logger.Warn("stop search failed", "component", "api", "norad_id", id, "error", err)
	}
	httputil.WriteJSON(w, http.StatusOK, newSearchResult(res))
}

// POST /api/v1/stop/search
func (h *handlers) searchBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
		return
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	if len(req.Jobs) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "at least one job is required", nil)
		return
	}
	if len(req.Jobs) > maxBatchJobs {
		httputil.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("too many jobs (%d), max %d", len(req.Jobs), maxBatchJobs),
			map[string]any{"max_jobs": maxBatchJobs})
		return
	}

	jobs := make([]propagation.Job, len(req.Jobs))
	for i := range req.Jobs {
		j := &req.Jobs[i]
		if err := j.validate(); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("jobs[%d]: %v", i, err), nil)
			return
		}
		jobs[i] = propagation.Job{NORADID: j.NORADID, Start: j.Start, Stops: j.Stops}
	}

	results, err := h.catalog.SearchAll(r.Context(), jobs)
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}

	resp := batchResponse{Results: make([]searchResult, len(results))}
	for i, res := range results {
		resp.Results[i] = newSearchResult(res)
		if res.Err != nil {
			resp.Errors++
		} else {
			resp.Success++
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// GET /api/v1/passes/{norad_id}?hours=24&min_elevation=10&max_passes=5&start=...
func (h *handlers) passes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "norad_id"))
	if err != nil || id < 1 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid NORAD ID", nil)
		return
	}

	q := r.URL.Query()
	req := passes.Request{
		Start:     time.Now().UTC().Truncate(time.Second),
		Span:      24 * time.Hour,
		MaxPasses: 10,
	}
	if v := q.Get("hours"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil || hours <= 0 || hours > 168 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid hours parameter, must be (0, 168]", nil)
			return
		}
		req.Span = time.Duration(hours * float64(time.Hour))
	}
	if v := q.Get("min_elevation"); v != "" {
		el, err := strconv.ParseFloat(v, 64)
		if err != nil || el < -90 || el > 90 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid min_elevation parameter", nil)
			return
		}
		req.MinElevation = el
	}
	if v := q.Get("max_passes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid max_passes parameter, must be 1-50", nil)
			return
		}
		req.MaxPasses = n
	}
	if v := q.Get("start"); v != "" {
		if req.Start, err = time.Parse(time.RFC3339, v); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid start, want RFC3339", nil)
			return
		}
	}

	prop, err := h.catalog.Propagator(id)
	switch {
	case errors.Is(err, propagation.ErrNoDataset):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error(), nil)
		return
	case err != nil:
		httputil.WriteError(w, http.StatusNotFound, err.Error(), nil)
		return
	}

	pred := &passes.Predictor{Observer: h.catalog.Observer(), Logger: h.logger.With("norad_id", id)}
	found, err := pred.Predict(r.Context(), prop, req)
	if err != nil {
		h.logger.Warn("pass prediction failed", "component", "api", "norad_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "pass prediction failed", nil)
		return
	}
	if found == nil {
		found = []passes.Pass{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"norad_id": id,
		"name":     prop.Name(),
		"passes":   found,
	})
}

// GET /api/v1/stop/params
func (h *handlers) params(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"params": propagation.ParamNames()})
}

// GET /api/v1/tle/metadata
func (h *handlers) tleMetadata(w http.ResponseWriter, r *http.Request) {
	ds := h.store.Get()
	if ds == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, propagation.ErrNoDataset.Error(), nil)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"source":          ds.Source,
		"fetched_at":      ds.FetchedAt.UTC().Format(time.RFC3339),
		"age_seconds":     int(h.store.AgeSeconds()),
		"satellite_count": len(ds.Satellites),
		"epoch_range":     ds.EpochRange,
	})
}
