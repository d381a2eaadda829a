// Package api exposes the view over HTTP: state and conjunction queries,
// filter and playback control, telemetry lookups, export rendering and the
// SSE event stream.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/conwatch/conwatch/internal/auth"
	"github.com/conwatch/conwatch/internal/health"
	"github.com/conwatch/conwatch/internal/metadata"
	"github.com/conwatch/conwatch/internal/metrics"
	"github.com/conwatch/conwatch/internal/stream"
	"github.com/conwatch/conwatch/internal/view"
)

// Options carries the server's dependencies.
type Options struct {
	Addr            string
	Logger          *slog.Logger
	Auth            auth.Config
	Orchestrator    *view.Orchestrator
	Stream          *stream.Handler
	Reference       *metadata.Provider
	ExportRecipient string
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	orch       *view.Orchestrator
	reference  *metadata.Provider
	recipient  string
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options) *Server {
	s := &Server{
		logger:    opts.Logger,
		orch:      opts.Orchestrator,
		reference: opts.Reference,
		recipient: opts.ExportRecipient,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return s.orch.State().CatalogAgeSec >= 0
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/conjunctions", s.handleConjunctions)
	mux.HandleFunc("PUT /api/v1/filter", s.handleFilter)
	mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/v1/select", s.handleSelect)
	mux.HandleFunc("POST /api/v1/focus/{catalog_id}", s.handleFocus)
	mux.HandleFunc("POST /api/v1/telemetry/pick", s.handlePick)

	mux.HandleFunc("POST /api/v1/playback/play", s.handlePlay)
	mux.HandleFunc("POST /api/v1/playback/pause", s.handlePause)
	mux.HandleFunc("POST /api/v1/playback/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/v1/playback/rate", s.handleRate)
	mux.HandleFunc("POST /api/v1/playback/scrub", s.handleScrub)

	mux.HandleFunc("GET /api/v1/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/reference", s.handleReference)

	if opts.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/events", opts.Stream.HandleEvents)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(opts.Logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer so ResponseController reaches the
// flusher and deadline controls on streaming responses.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Flush forwards to the wrapped writer when it supports flushing.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
