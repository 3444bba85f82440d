package server

import (
	"encoding/json"
	"net/http"

	"github.com/webnovel-tools/enhancer/internal/chunker"
	"github.com/webnovel-tools/enhancer/internal/session"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /availability", s.handleAvailability)
	mux.HandleFunc("POST /enhance", s.handleEnhance)
	mux.HandleFunc("POST /terminate", s.handleTerminate)
	mux.HandleFunc("GET /session", s.handleSession)
	mux.HandleFunc("GET /errors", s.handleErrors)
}

// HealthResponse is the response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAvailability returns the cached model host status.
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	status := s.gateway.Availability(r.Context())
	code := http.StatusOK
	if !status.Available {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// EnhanceRequest starts an enhancement session over the given text.
type EnhanceRequest struct {
	NovelID      string `json:"novel_id"`
	Text         string `json:"text"`
	MaxChunkSize int    `json:"max_chunk_size,omitempty"`
}

// EnhanceResponse carries the finished session and the rewritten text.
type EnhanceResponse struct {
	Session session.Snapshot `json:"session"`
	Text    string           `json:"text,omitempty"`
}

// handleEnhance runs a session synchronously and returns the rewritten
// document. A trigger while a session is active collapses into a queued
// follow-up and reports the active session.
func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.MaxChunkSize <= 0 {
		req.MaxChunkSize = s.maxChunkSize
	}

	sink := session.NewTextSink(chunker.Plan(req.Text, req.MaxChunkSize))
	input := session.Input{
		NovelID:      req.NovelID,
		Text:         req.Text,
		MaxChunkSize: req.MaxChunkSize,
		Sink:         sink,
	}
	sess, err := s.orchestrator.Run(r.Context(), input)
	if sess == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	snap := sess.Snapshot()
	resp := EnhanceResponse{Session: snap}
	// Terminated sessions still return the units committed so far.
	if snap.State == session.StateComplete || snap.State == session.StateTerminated {
		resp.Text = sink.Document()
	}

	switch snap.State {
	case session.StateFailed:
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// TerminateResponse acknowledges a terminate-all request.
type TerminateResponse struct {
	Terminated int `json:"terminated"`
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	count := s.orchestrator.Terminate()
	s.logger.Info("terminate requested", "aborted", count)
	writeJSON(w, http.StatusOK, TerminateResponse{Terminated: count})
}

// handleSession reports the active or most recent session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.orchestrator.Current()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no session has run")
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleErrors returns the bounded failure history.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notifier.History())
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
