package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// listSessions handles GET /api/v1/sessions?limit=N.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "MALFORMED_INPUT", fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeProcessorError(w, r, fmt.Errorf("%w: %v", processor.ErrStorageUnavailable, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list, "count": len(list)})
}

// loadSession writes the error response itself and returns nil when the
// session cannot be served.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, err := s.proc.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeProcessorError(w, r, err)
		return nil
	}
	return sess
}

// getSession handles GET /api/v1/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess := s.loadSession(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sess)
	}
}

type intelligenceResponse struct {
	SessionID    string                 `json:"sessionId"`
	Intelligence extractor.Intelligence `json:"intelligence"`
	Facts        []session.Fact         `json:"facts"`
	Demands      []session.Fact         `json:"demands"`
	Tactics      []string               `json:"tactics"`
	Count        int                    `json:"count"`
}

// getIntelligence handles GET /api/v1/sessions/{id}/intelligence.
func (s *Server) getIntelligence(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, intelligenceResponse{
		SessionID:    sess.ID,
		Intelligence: sess.Intel,
		Facts:        nonNilFacts(sess.Facts),
		Demands:      nonNilFacts(sess.Demands),
		Tactics:      nonNilStrings(sess.Tactics),
		Count:        sess.Intel.Count(),
	})
}

type summaryResponse struct {
	SessionID     string               `json:"sessionId"`
	Verdict       session.Verdict      `json:"verdict"`
	ScamDetected  bool                 `json:"scamDetected"`
	ScamType      string               `json:"scamType"`
	Confidence    float64              `json:"confidence"`
	RiskLevel     string               `json:"riskLevel"`
	Stage         session.Stage        `json:"stage"`
	Persona       string               `json:"persona"`
	TotalMessages int                  `json:"totalMessagesExchanged"`
	InboundTurns  int                  `json:"inboundTurns"`
	ReportStatus  session.ReportStatus `json:"reportStatus"`
	ReportedAt    *time.Time           `json:"reportedAt,omitempty"`
	AgentNotes    string               `json:"agentNotes"`
}

// getSummary handles GET /api/v1/sessions/{id}/summary.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		SessionID:     sess.ID,
		Verdict:       sess.Verdict,
		ScamDetected:  sess.Verdict == session.VerdictConfirmed,
		ScamType:      sess.ScamType,
		Confidence:    sess.Confidence,
		RiskLevel:     sess.RiskLevel,
		Stage:         sess.Stage,
		Persona:       sess.Persona,
		TotalMessages: len(sess.Turns),
		InboundTurns:  sess.InboundCount(),
		ReportStatus:  sess.ReportStatus,
		ReportedAt:    sess.ReportedAt,
		AgentNotes:    s.proc.Notes(sess),
	})
}

// getHistory handles GET /api/v1/sessions/{id}/history.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	turns := sess.Turns
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":    sess.ID,
		"messageCount": len(turns),
		"messages":     turns,
	})
}

func nonNilFacts(v []session.Fact) []session.Fact {
	if v == nil {
		return []session.Fact{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
