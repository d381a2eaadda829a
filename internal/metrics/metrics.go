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
			Name: "conwatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conwatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// CatalogFetchesTotal counts conjunction feed fetches by outcome.
	CatalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conwatch_catalog_fetches_total",
			Help: "Total conjunction catalog fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SceneReloadsTotal counts scene load attempts by outcome. A "stale"
	// outcome means a load was discarded because a newer one had landed.
	SceneReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conwatch_scene_reloads_total",
			Help: "Total scene reloads by outcome (applied, stale, error).",
		},
		[]string{"outcome"},
	)

	// TelemetryResolutionsTotal counts pick and focus resolutions.
	TelemetryResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conwatch_telemetry_resolutions_total",
			Help: "Total telemetry resolutions by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)

	// StreamClientsGauge tracks connected event stream clients.
	StreamClientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "conwatch_stream_clients",
			Help: "Currently connected event stream clients.",
		},
	)

	// StreamEventsTotal counts events pushed to stream clients.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conwatch_stream_events_total",
			Help: "Total events written to stream clients by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(CatalogFetchesTotal)
	prometheus.MustRegister(SceneReloadsTotal)
	prometheus.MustRegister(TelemetryResolutionsTotal)
	prometheus.MustRegister(StreamClientsGauge)
	prometheus.MustRegister(StreamEventsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are the exact paths recorded as-is. Anything else collapses
// to a parameterized or catch-all label so scanners and bots cannot blow up
// the label cardinality.
var knownRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/state":           true,
	"/api/v1/conjunctions":    true,
	"/api/v1/filter":          true,
	"/api/v1/refresh":         true,
	"/api/v1/select":          true,
	"/api/v1/telemetry/pick":  true,
	"/api/v1/playback/play":   true,
	"/api/v1/playback/pause":  true,
	"/api/v1/playback/toggle": true,
	"/api/v1/playback/rate":   true,
	"/api/v1/playback/scrub":  true,
	"/api/v1/export":          true,
	"/api/v1/reference":       true,
	"/api/v1/stream/events":   true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/api/v1/focus/") {
		return "/api/v1/focus/{catalog_id}"
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

// Unwrap exposes the wrapped writer so ResponseController reaches the
// flusher and deadline controls on streaming responses.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Flush forwards to the wrapped writer when it supports flushing.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
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
