// Package stream implements Server-Sent Events (SSE) streaming of stop
// crossings. Clients connect via GET /api/v1/stop/stream/{norad_id} and
// receive each crossing as soon as the search resolves it.
//
// SSE message format:
//
//	data: {"type":"crossing","param":"Apoapsis","goal":0,"occurrence":1,"time":"...","elapsed_secs":2790.5}\n\n
//
// First message is always metadata, last is "done" or "error":
//
//	data: {"type":"metadata","norad_id":25544,"param":"Apoapsis","dataset_epoch":"...","tle_age_seconds":1800}\n\n
//	data: {"type":"done","crossings":3}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while the
// search runs.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/star/trajevent/internal/httputil"
	"github.com/star/trajevent/internal/metrics"
	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/tle"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 4).
	MaxTotal           int           // Global stream cap (default: 256).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
}

// Searcher runs a stop search and reports crossings as they are found.
type Searcher interface {
	SearchFunc(ctx context.Context, noradID int, start time.Time, stops []propagation.StopSpec,
		fn func(propagation.Crossing)) (propagation.Result, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	search  Searcher
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(search Searcher, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP < 1 {
		config.MaxConcurrentPerIP = 4
	}
	if config.MaxTotal < 1 {
		config.MaxTotal = 256
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	return &Handler{
		search:  search,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

// request is a parsed stream query.
type request struct {
	noradID int
	start   time.Time
	stop    propagation.StopSpec
}

func parseRequest(r *http.Request, noradStr string) (request, error) {
	var req request
	id, err := strconv.Atoi(noradStr)
	if err != nil || id < 1 {
		return req, fmt.Errorf("invalid NORAD ID %q", noradStr)
	}
	req.noradID = id

	q := r.URL.Query()
	req.stop.Param = q.Get("param")
	if req.stop.Param == "" {
		return req, fmt.Errorf("param is required")
	}
	if err := req.stop.Validate(); err != nil {
		return req, err
	}
	if v := q.Get("goal"); v != "" {
		if req.stop.Goal, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("invalid goal %q", v)
		}
	}
	req.stop.Repeat = 1
	if v := q.Get("repeat"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return req, fmt.Errorf("invalid repeat parameter, must be 1-100")
		}
		req.stop.Repeat = n
	}
	req.stop.Interpolator = q.Get("interpolator")

	req.start = time.Now().UTC().Truncate(time.Second)
	if v := q.Get("start"); v != "" {
		if req.start, err = time.Parse(time.RFC3339, v); err != nil {
			return req, fmt.Errorf("invalid start %q, want RFC3339", v)
		}
	}
	return req, nil
}

// HandleCrossings serves the SSE crossing stream for the satellite named
// by noradStr.
// GET /api/v1/stop/stream/{norad_id}?param=Apoapsis&goal=0&repeat=3
func (h *Handler) HandleCrossings(w http.ResponseWriter, r *http.Request, noradStr string) {
	req, err := parseRequest(r, noradStr)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.FromContext(r)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams", nil)
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"norad_id", req.noradID,
		"param", req.stop.Param,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{w: w, flusher: flusher, rc: rc, ip: ip, logger: h.logger}

	// Jittered retry interval (3-7s) against reconnection storms.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	meta := metadataMessage{Type: "metadata", NORADID: req.noradID, Param: req.stop.Param, Goal: req.stop.Goal}
	if ds := h.store.Get(); ds != nil {
		meta.DatasetEpoch = ds.FetchedAt.UTC().Format(time.RFC3339)
		meta.TLEAge = int(time.Since(ds.FetchedAt).Seconds())
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	crossings := make(chan propagation.Crossing)
	finished := make(chan error, 1)
	go func() {
		_, err := h.search.SearchFunc(ctx, req.noradID, req.start, []propagation.StopSpec{req.stop},
			func(cr propagation.Crossing) {
				select {
				case crossings <- cr:
				case <-ctx.Done():
				}
			})
		finished <- err
	}()
	defer func() {
		cancel()
		<-finished
	}()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return

		case cr := <-crossings:
			if err := c.sendJSON(crossingMessage{Type: "crossing", Crossing: cr}); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			sent++
			keepalive.Reset(h.config.KeepaliveInterval)

		case err := <-finished:
			// Put the result back for the deferred drain.
			finished <- err
			var msg any = doneMessage{Type: "done", Crossings: sent}
			if err != nil {
				metrics.IncStreamErrors("search_error")
				msg = errorMessage{Type: "error", Error: err.Error()}
			}
			if err := c.sendJSON(msg); err != nil {
				metrics.IncStreamErrors("send_error")
			}
			return

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type         string  `json:"type"`
	NORADID      int     `json:"norad_id"`
	Param        string  `json:"param"`
	Goal         float64 `json:"goal"`
	DatasetEpoch string  `json:"dataset_epoch,omitempty"`
	TLEAge       int     `json:"tle_age_seconds,omitempty"`
}

type crossingMessage struct {
	Type string `json:"type"`
	propagation.Crossing
}

type doneMessage struct {
	Type      string `json:"type"`
	Crossings int    `json:"crossings"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
