// Package store persists sessions. Every backend stores the whole session as
// one JSON document next to a few indexed summary columns.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// ErrNotFound is returned by Get for an unknown session id.
var ErrNotFound = errors.New("session not found")

// SessionStore is the persistence contract the processor relies on. Put
// replaces the stored session atomically.
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Put(ctx context.Context, s *session.Session) error
	List(ctx context.Context, limit int) ([]Summary, error)
	Stats(ctx context.Context) (Stats, error)
	Close()
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string               `json:"session_id"`
	Verdict      session.Verdict      `json:"verdict"`
	ScamType     string               `json:"scam_type,omitempty"`
	Stage        session.Stage        `json:"stage"`
	ReportStatus session.ReportStatus `json:"report_status"`
	Turns        int                  `json:"turns"`
	IntelCount   int                  `json:"intel_count"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type Stats struct {
	Sessions       int `json:"sessions"`
	Confirmed      int `json:"confirmed"`
	Rejected       int `json:"rejected"`
	ReportsSent    int `json:"reports_sent"`
	ReportsPending int `json:"reports_pending"`
	IntelItems     int `json:"intel_items"`
}

func summarize(s *session.Session) Summary {
	return Summary{
		ID:           s.ID,
		Verdict:      s.Verdict,
		ScamType:     s.ScamType,
		Stage:        s.Stage,
		ReportStatus: s.ReportStatus,
		Turns:        len(s.Turns),
		IntelCount:   s.Intel.Count(),
		UpdatedAt:    s.UpdatedAt,
	}
}

func (st *Stats) add(sum Summary) {
	st.Sessions++
	switch sum.Verdict {
	case session.VerdictConfirmed:
		st.Confirmed++
	case session.VerdictRejected:
		st.Rejected++
	}
	switch sum.ReportStatus {
	case session.ReportSent:
		st.ReportsSent++
	case session.ReportPending:
		st.ReportsPending++
	}
	st.IntelItems += sum.IntelCount
}

func encode(s *session.Session) ([]byte, error) {
	if s == nil || s.ID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
