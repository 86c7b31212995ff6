// Package policy decides when a conversation has produced enough to report.
// It only marks sessions; delivery belongs to the caller.
package policy

import (
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

type Config struct {
	MinTurns int // inbound turns before a confirmed scam may be reported
	MaxTurns int // inbound turns after which a confirmed scam is reported without intel
}

func DefaultConfig() Config {
	return Config{MinTurns: 3, MaxTurns: 20}
}

// Reason says why a session qualifies for a report.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonConfirmed Reason = "confirmed_with_intel"
	ReasonTurnLimit Reason = "turn_limit"
	ReasonNewIntel  Reason = "new_intel_categories"
	ReasonManual    Reason = "manual"
)

type Policy struct {
	cfg Config
}

func New(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.MinTurns <= 0 {
		cfg.MinTurns = def.MinTurns
	}
	if cfg.MaxTurns < cfg.MinTurns {
		cfg.MaxTurns = def.MaxTurns
	}
	return &Policy{cfg: cfg}
}

// ShouldReport is true for a confirmed scam after MinTurns inbound turns that
// has either yielded actionable intelligence or run past MaxTurns. A session
// never confirmed as a scam is never reported.
func (p *Policy) ShouldReport(s *session.Session) bool {
	return p.reason(s) != ReasonNone
}

func (p *Policy) reason(s *session.Session) Reason {
	inbound := s.InboundCount()
	if s.Verdict != session.VerdictConfirmed || inbound < p.cfg.MinTurns {
		return ReasonNone
	}
	switch {
	case !s.Intel.Empty():
		return ReasonConfirmed
	case inbound > p.cfg.MaxTurns:
		return ReasonTurnLimit
	default:
		return ReasonNone
	}
}

// Evaluate returns a copy of s marked pending when a report is due. A session
// already reported is marked again only when it has since gained intelligence
// categories the last report lacked.
func (p *Policy) Evaluate(s *session.Session) (*session.Session, Reason) {
	r := p.reason(s)
	if r == ReasonNone {
		return s, ReasonNone
	}

	switch s.ReportStatus {
	case session.ReportPending:
		return s, r
	case session.ReportSent:
		if len(Unreported(s)) == 0 {
			return s, ReasonNone
		}
		r = ReasonNewIntel
	}

	next := s.Clone()
	next.ReportStatus = session.ReportPending
	return next, r
}

// Unreported lists intelligence categories present in s but missing from the
// last delivered report.
func Unreported(s *session.Session) []string {
	var out []string
	for _, c := range s.Intel.Categories() {
		found := false
		for _, r := range s.ReportedCategories {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
