package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/report"
)

type messageResponse struct {
	Status string `json:"status"`
	processor.Result
}

// handleMessage handles POST /api/v1/messages.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var in processor.Inbound
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := s.proc.Process(r.Context(), in)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Status: "success", Result: res})
}

type analyzeRequest struct {
	Message processor.Message   `json:"message"`
	History []processor.Message `json:"conversationHistory,omitempty"`
}

// handleAnalyze handles POST /api/v1/analyze. No session is read or written.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.proc.Analyze(r.Context(), req.Message, req.History)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type reportResponse struct {
	Status  string         `json:"status"`
	Payload report.Payload `json:"report"`
}

// triggerReport handles POST /api/v1/sessions/{id}/report.
func (s *Server) triggerReport(w http.ResponseWriter, r *http.Request) {
	payload, err := s.proc.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Status: "sent", Payload: payload})
}

// handleStats handles GET /api/v1/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeProcessorError(w, r, fmt.Errorf("%w: %v", processor.ErrStorageUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "MALFORMED_INPUT", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}
