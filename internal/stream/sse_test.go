package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conwatch/conwatch/internal/catalog"
	"github.com/conwatch/conwatch/internal/czml"
	"github.com/conwatch/conwatch/internal/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

type stubCatalog struct{}

func (stubCatalog) Fetch(ctx context.Context) ([]catalog.Conjunction, error) {
	return []catalog.Conjunction{{
		AlertLevel: catalog.AlertRed,
		DistanceKm: 0.8,
		Sat1:       catalog.Satellite{Name: "SAT-A", CatalogNumber: 100},
		Sat2:       catalog.Satellite{Name: "SAT-B", CatalogNumber: 200},
	}}, nil
}

type stubPackets struct{}

func (stubPackets) Packets(ctx context.Context) ([]czml.Packet, error) {
	epoch := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	return []czml.Packet{
		czml.Document("Trajectories", epoch, epoch.Add(time.Hour), 60),
		{ID: "SAT-A (100)", Name: "SAT-A"},
		{ID: "SAT-B (200)", Name: "SAT-B"},
	}, nil
}

func testOrchestrator(t *testing.T) *view.Orchestrator {
	t.Helper()
	o := view.NewOrchestrator(view.Options{
		Logger:  testLogger(),
		Catalog: stubCatalog{},
		Packets: stubPackets{},
	})
	if err := o.RefreshCatalog(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return o
}

// TestSSEMessageFormat verifies the wire format and that the first event
// is a full state snapshot.
func TestSSEMessageFormat(t *testing.T) {
	handler := NewHandler(testOrchestrator(t), Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  50 * time.Millisecond,
	}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/events", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	ctx, cancel := context.WithTimeout(req.Context(), 200*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandleEvents(w, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()

	// First event must be the state snapshot.
	var foundState bool
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev view.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		if ev.Type == "state" {
			foundState = true
			if ev.State == nil || ev.State.TotalCount != 1 {
				t.Errorf("snapshot state: got %+v", ev.State)
			}
		}
		break
	}
	if !foundState {
		t.Error("first event was not a state snapshot")
	}

	// All lines must be SSE framing: event/data/retry lines, keepalive
	// comments or blanks.
	for _, line := range strings.Split(body, "\n") {
		if line == "" || line == ":" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") &&
			!strings.HasPrefix(line, "event: ") &&
			!strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}

	// The 50ms keepalive should have fired during the 200ms window.
	if !strings.Contains(body, ":\n\n") {
		t.Error("no keepalive comment in stream")
	}
}

// TestStreamReceivesPublishedEvents verifies orchestrator pushes reach a
// connected client.
func TestStreamReceivesPublishedEvents(t *testing.T) {
	orch := testOrchestrator(t)
	handler := NewHandler(orch, Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  time.Second,
	}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/events", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.HandleEvents(w, req)
	}()

	// Wait for the connection to subscribe, then push.
	time.Sleep(50 * time.Millisecond)
	orch.FocusOn(200)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), "event: camera") {
		t.Error("camera event never reached the client")
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3)

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

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	handler := NewHandler(testOrchestrator(t), Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())

	// Hold the first connection open.
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/events", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleEvents(w, req)
	}()

	<-ready

	// Second connection from same IP should get 429.
	req := httptest.NewRequest("GET", "/api/v1/stream/events", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandleEvents(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
}
