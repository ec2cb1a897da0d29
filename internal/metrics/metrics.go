package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajevent_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trajevent_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	stopCrossingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajevent_stop_crossings_total",
			Help: "Goal crossings reported by stopping conditions.",
		},
		[]string{"kind"},
	)

	interpolationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trajevent_interpolation_failures_total",
			Help: "Interpolator calls that could not produce a stop epoch.",
		},
	)

	stopSearchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trajevent_stop_search_duration_seconds",
			Help:    "Wall time of one stop search over a propagation span.",
			Buckets: prometheus.DefBuckets,
		},
	)

	eclipseRawEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trajevent_eclipse_raw_events_total",
			Help: "Raw occultation intervals consumed by the merge engine.",
		},
	)

	eclipseTotalEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trajevent_eclipse_total_events_total",
			Help: "Merged total events produced by the merge engine.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajevent_stream_connections_total",
			Help: "Crossing stream connect and disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajevent_streams_active",
			Help: "Open crossing streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trajevent_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trajevent_stream_errors_total",
			Help: "Crossing stream errors by reason.",
		},
		[]string{"reason"},
	)

	tleDatasetSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajevent_tle_dataset_satellites",
			Help: "Satellites in the loaded TLE dataset.",
		},
	)

	tleDatasetAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trajevent_tle_dataset_age_seconds",
			Help: "Seconds since the loaded TLE dataset was fetched.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(stopCrossingsTotal)
	prometheus.MustRegister(interpolationFailuresTotal)
	prometheus.MustRegister(stopSearchDurationSeconds)
	prometheus.MustRegister(eclipseRawEventsTotal)
	prometheus.MustRegister(eclipseTotalEventsTotal)
	prometheus.MustRegister(streamConnectionsTotal)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamErrorsTotal)
	prometheus.MustRegister(tleDatasetSize)
	prometheus.MustRegister(tleDatasetAge)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCrossing counts a detected goal crossing of the given kind
// ("time", "value", "cyclic", "apsis").
func RecordCrossing(kind string) {
	stopCrossingsTotal.WithLabelValues(kind).Inc()
}

// RecordInterpolationFailure counts a failed interpolation.
func RecordInterpolationFailure() {
	interpolationFailuresTotal.Inc()
}

// RecordStopSearch observes the duration of one stop search.
func RecordStopSearch(d time.Duration) {
	stopSearchDurationSeconds.Observe(d.Seconds())
}

// RecordMerge counts the inputs and outputs of one merge.
func RecordMerge(raw, total int) {
	eclipseRawEventsTotal.Add(float64(raw))
	eclipseTotalEventsTotal.Add(float64(total))
}

// IncStreamConnections counts a stream "connect" or "disconnect".
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE data message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// SetTLEDataset records the size and age of the loaded TLE dataset.
func SetTLEDataset(satellites int, ageSeconds float64) {
	tleDatasetSize.Set(float64(satellites))
	tleDatasetAge.Set(ageSeconds)
}

// knownRoutes are the paths served verbatim as metric labels.
var knownRoutes = map[string]bool{
	"/":                      true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/api/v1/eclipse/merge":  true,
	"/api/v1/eclipse/report": true,
	"/api/v1/stop/search":    true,
	"/api/v1/stop/params":    true,
	"/api/v1/tle/metadata":   true,
}

// normalizeRoute collapses unknown paths so bots cannot inflate label
// cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/stop/search/") {
		return "/api/v1/stop/search/{norad_id}"
	}
	if strings.HasPrefix(path, "/api/v1/stop/stream/") {
		return "/api/v1/stop/stream/{norad_id}"
	}
	if strings.HasPrefix(path, "/api/v1/passes/") {
		return "/api/v1/passes/{norad_id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE handlers working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
