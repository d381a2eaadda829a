package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/conwatch/conwatch/internal/export"
	"github.com/conwatch/conwatch/internal/filter"
	"github.com/conwatch/conwatch/internal/view"
)

// maxRequestBytes bounds request bodies on the control endpoints.
const maxRequestBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// handleState returns the full view state.
// GET /api/v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.State())
}

// handleConjunctions returns the filtered conjunction list in catalog order.
// GET /api/v1/conjunctions
func (s *Server) handleConjunctions(w http.ResponseWriter, r *http.Request) {
	conjunctions := s.orch.Conjunctions()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(conjunctions),
		"conjunctions": conjunctions,
	})
}

// handleFilter replaces the filter criteria. The scene reload runs
// asynchronously; the response reflects the recomputed list immediately.
// PUT /api/v1/filter
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var criteria filter.Criteria
	if !decodeBody(w, r, &criteria) {
		return
	}
	if criteria.MaxDistanceKm < 0 {
		writeError(w, http.StatusBadRequest, "max_distance_km must not be negative")
		return
	}

	s.orch.SetFilter(r.Context(), criteria)
	writeJSON(w, http.StatusOK, s.orch.State())
}

// handleRefresh refetches the conjunction feed and trajectory packets.
// POST /api/v1/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RefreshCatalog(r.Context()); err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, s.orch.State())
}

type selectRequest struct {
	Index int `json:"index"`
}

// handleSelect selects the i-th filtered conjunction and focuses the
// camera on it. A negative index clears the selection.
// POST /api/v1/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Index < 0 {
		s.orch.ClearSelection()
		writeJSON(w, http.StatusOK, map[string]any{"selected_index": view.NoSelection})
		return
	}

	res, err := s.orch.SelectIndex(req.Index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFocus moves the camera onto a satellite by catalog identifier
// without changing the selection.
// POST /api/v1/focus/{catalog_id}
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("catalog_id")
	res := s.orch.FocusOn(id)
	if !res.Found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no entity with catalog identifier %q in the scene", id))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type pickRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// handlePick hit-tests a screen point at the current simulated time.
// POST /api/v1/telemetry/pick
func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tel, ok := s.orch.ResolveScreenPoint(req.X, req.Y)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "telemetry": tel})
}

// handlePlay starts the playback clock.
// POST /api/v1/playback/play
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.orch.Clock().Play()
	s.orch.PublishState()
	writeJSON(w, http.StatusOK, s.orch.Clock().State())
}

// handlePause pauses the playback clock in place.
// POST /api/v1/playback/pause
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.orch.Clock().Pause()
	s.orch.PublishState()
	writeJSON(w, http.StatusOK, s.orch.Clock().State())
}

// handleToggle flips between playing and paused.
// POST /api/v1/playback/toggle
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.orch.Clock().Toggle()
	s.orch.PublishState()
	writeJSON(w, http.StatusOK, s.orch.Clock().State())
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

// handleRate selects a playback rate. A zero or absent rate advances to
// the next rate in the cycle; an unknown rate leaves the current one.
// POST /api/v1/playback/rate
func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	// An empty body means "cycle", so EOF is not an error here.
	var req rateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var rate float64
	if req.Rate == 0 {
		rate = s.orch.Clock().CycleRate()
	} else {
		rate = s.orch.Clock().SetRate(req.Rate)
	}
	s.orch.PublishState()
	writeJSON(w, http.StatusOK, map[string]float64{"rate": rate})
}

type scrubRequest struct {
	Time time.Time `json:"time"`
}

// handleScrub moves simulated time, clamped to the loaded window.
// POST /api/v1/playback/scrub
func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	var req scrubRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Time.IsZero() {
		writeError(w, http.StatusBadRequest, "time is required")
		return
	}

	s.orch.Clock().Scrub(req.Time)
	s.orch.PublishState()
	writeJSON(w, http.StatusOK, s.orch.Clock().State())
}

// handleExport renders one filtered conjunction as a shareable report.
// GET /api/v1/export?index=N&recipient=ops@example.com
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index query parameter is required")
		return
	}

	conjunctions := s.orch.Conjunctions()
	if index < 0 || index >= len(conjunctions) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("export index %d out of range [0,%d)", index, len(conjunctions)))
		return
	}

	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		recipient = s.recipient
	}

	c := conjunctions[index]
	writeJSON(w, http.StatusOK, map[string]string{
		"subject": export.Subject(c),
		"message": export.Message(c),
		"mailto":  export.MailtoURL(recipient, c),
	})
}

// handleReference returns descriptive facts about the reference body.
// GET /api/v1/reference
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reference.Reference(r.Context()))
}
