package session

import (
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

type Config struct {
	// Inbound turn counts at which the stage ends: up to AnxiousUntil is
	// anxious, up to ConfusedUntil confused, up to FrustratedUntil frustrated.
	AnxiousUntil    int
	ConfusedUntil   int
	FrustratedUntil int

	// RejectAfter non-scam inbound turns reject an undetermined session.
	RejectAfter int
}

func DefaultConfig() Config {
	return Config{AnxiousUntil: 3, ConfusedUntil: 7, FrustratedUntil: 10, RejectAfter: 6}
}

// Inbound is a validated counterparty message.
type Inbound struct {
	Text      string
	Timestamp time.Time
	Channel   string
	Language  string
	Locale    string
}

// Analysis is what the extractor and classifier made of an inbound message.
type Analysis struct {
	Extraction     extractor.Result
	Classification classifier.Result
}

// Reply is an accepted outgoing agent message.
type Reply struct {
	Text      string
	Opener    string
	Excuse    string
	Timestamp time.Time
}

// Machine applies turns to sessions. It is deterministic and never mutates
// the session it is given.
type Machine struct {
	cfg Config
	lib *patterns.Library
	now func() time.Time
}

func NewMachine(lib *patterns.Library, cfg Config) *Machine {
	def := DefaultConfig()
	if cfg.AnxiousUntil <= 0 || cfg.ConfusedUntil <= cfg.AnxiousUntil || cfg.FrustratedUntil <= cfg.ConfusedUntil {
		cfg.AnxiousUntil, cfg.ConfusedUntil, cfg.FrustratedUntil = def.AnxiousUntil, def.ConfusedUntil, def.FrustratedUntil
	}
	if cfg.RejectAfter <= 0 {
		cfg.RejectAfter = def.RejectAfter
	}
	return &Machine{cfg: cfg, lib: lib, now: time.Now}
}

// StageFor returns the stage for an inbound turn count.
func (m *Machine) StageFor(inbound int) Stage {
	switch {
	case inbound <= m.cfg.AnxiousUntil:
		return StageAnxious
	case inbound <= m.cfg.ConfusedUntil:
		return StageConfused
	case inbound <= m.cfg.FrustratedUntil:
		return StageFrustrated
	default:
		return StageSuspicious
	}
}

// New returns an empty session for id.
func (m *Machine) New(id string) *Session {
	now := m.now().UTC()
	return &Session{
		ID:           id,
		Stage:        StageAnxious,
		Verdict:      VerdictUndetermined,
		ReportStatus: ReportNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Observe applies an inbound turn and returns the updated copy.
func (m *Machine) Observe(s *Session, in Inbound, a Analysis) *Session {
	next := s.Clone()
	now := m.now().UTC()

	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	seq := next.LastSeq() + 1
	next.Turns = append(next.Turns, Turn{
		Seq:       seq,
		Sender:    SenderCounterparty,
		Text:      in.Text,
		Timestamp: ts,
		Intel:     a.Extraction.New,
	})
	inbound := next.InboundCount()

	// (a) intelligence
	next.Intel = next.Intel.Merge(a.Extraction.New)
	next.Tactics = unionStrings(next.Tactics, a.Extraction.Tactics)

	// (b) verdict
	m.applyVerdict(next, a.Classification)

	// (c) facts
	for _, cat := range []string{extractor.CategoryBankAccount, extractor.CategoryPaymentHandle, extractor.CategoryPhone, extractor.CategoryLink} {
		for _, v := range a.Extraction.New.Values(cat) {
			next.Facts = addFact(next.Facts, cat, v, inbound)
		}
	}
	for _, d := range a.Extraction.Disclosures {
		if d.Demand {
			next.Demands = addFact(next.Demands, d.Type, d.Value, inbound)
			continue
		}
		next.Facts = addFact(next.Facts, d.Type, d.Value, inbound)
	}

	// (d) topics
	next.Topics = append(next.Topics, TopicMark{Seq: seq, Sender: SenderCounterparty, Topics: a.Extraction.Topics})

	// (e) persona, once
	if next.Persona == "" {
		next.Persona = m.personaFor(a.Classification.Dominant)
	}

	// (f) stage never regresses
	if st := m.StageFor(inbound); st.Rank() > next.Stage.Rank() {
		next.Stage = st
	}

	if in.Channel != "" {
		next.Channel = in.Channel
	}
	if in.Language != "" {
		next.Language = in.Language
	}
	if in.Locale != "" {
		next.Locale = in.Locale
	}
	next.UpdatedAt = now
	return next
}

// Respond records an accepted agent reply and returns the updated copy.
func (m *Machine) Respond(s *Session, r Reply) *Session {
	next := s.Clone()
	now := m.now().UTC()

	ts := r.Timestamp
	if ts.IsZero() {
		ts = now
	}
	seq := next.LastSeq() + 1
	next.Turns = append(next.Turns, Turn{Seq: seq, Sender: SenderAgent, Text: r.Text, Timestamp: ts})
	next.Topics = append(next.Topics, TopicMark{Seq: seq, Sender: SenderAgent, Topics: m.lib.Topics(r.Text)})

	opener := r.Opener
	if opener == "" {
		opener = Opener(r.Text)
	}
	next.Ledger = next.Ledger.record(opener, r.Excuse)
	next.UpdatedAt = now
	return next
}

func (m *Machine) applyVerdict(s *Session, c classifier.Result) {
	if c.Confidence > s.Confidence {
		s.Confidence = c.Confidence
		s.RiskLevel = c.RiskLevel
	}
	if c.ScamType != "" && c.ScamType != classifier.Generic && (s.ScamType == "" || s.ScamType == classifier.Generic) {
		s.ScamType = c.ScamType
	} else if s.ScamType == "" && c.Scam {
		s.ScamType = c.ScamType
	}

	switch {
	case s.Verdict == VerdictConfirmed:
	case c.Scam:
		s.Verdict = VerdictConfirmed
	case s.Verdict == VerdictUndetermined || s.Verdict == "":
		s.NonScamTurns++
		if s.NonScamTurns >= m.cfg.RejectAfter {
			s.Verdict = VerdictRejected
		} else {
			s.Verdict = VerdictUndetermined
		}
	}
}

func (m *Machine) personaFor(f patterns.Family) string {
	if f != "" {
		if p := m.lib.Persona(f); p != "" {
			return p
		}
	}
	return PersonaDefault
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		found := false
		for _, x := range out {
			if x == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}
