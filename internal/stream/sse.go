// Package stream implements Server-Sent Events (SSE) streaming of view
// state. Clients connect via GET /api/v1/stream/events and receive every
// state and camera event the orchestrator publishes.
//
// SSE message format:
//
//	event: state\ndata: {"type":"state","state":{...}}\n\n
//	event: camera\ndata: {"type":"camera","camera":{...}}\n\n
//
// The first message on every connection is a full state snapshot, so a
// reconnecting client never renders from a stale picture. Keep-alive
// comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/conwatch/conwatch/internal/httputil"
	"github.com/conwatch/conwatch/internal/metrics"
	"github.com/conwatch/conwatch/internal/view"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // max concurrent streams per IP (default: 10)
	KeepaliveInterval  time.Duration // keep-alive ping interval (default: 30s)
	TrustProxy         bool          // trust X-Forwarded-For for client IPs
}

// Handler manages SSE streaming connections.
type Handler struct {
	orch    *view.Orchestrator
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler.
func NewHandler(orch *view.Orchestrator, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		orch:    orch,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandleEvents serves the SSE event stream.
// GET /api/v1/stream/events
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.StreamClientsGauge.Inc()
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	var c *client
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClientsGauge.Dec()
		var sent, bytes int64
		if c != nil {
			sent, bytes = c.messagesSent, c.bytesSent
		}
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages_sent", sent,
			"bytes_sent", bytes,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived connection: clear the server's default WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c = &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Full snapshot first so a reconnecting client starts consistent.
	st := h.orch.State()
	if err := c.sendEvent("state", view.Event{Type: "state", State: &st}); err != nil {
		h.logger.Warn("stream send error (snapshot)", "remote_ip", ip, "error", err)
		return
	}

	events, cancel := h.orch.Subscribe()
	defer cancel()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return // orchestrator shut down
			}
			if err := c.sendEvent(ev.Type, ev); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
