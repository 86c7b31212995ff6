package session

import (
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

// Stage is the emotional stage the agent plays. It only ever moves forward.
type Stage string

const (
	StageAnxious    Stage = "anxious"
	StageConfused   Stage = "confused"
	StageFrustrated Stage = "frustrated"
	StageSuspicious Stage = "suspicious"
)

var stageOrder = map[Stage]int{
	StageAnxious:    0,
	StageConfused:   1,
	StageFrustrated: 2,
	StageSuspicious: 3,
}

// Rank orders stages; unknown stages rank below anxious.
func (s Stage) Rank() int {
	r, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return r
}

type Sender string

const (
	SenderCounterparty Sender = "counterparty"
	SenderAgent        Sender = "agent"
)

type Verdict string

const (
	VerdictUndetermined Verdict = "undetermined"
	VerdictConfirmed    Verdict = "confirmed"
	VerdictRejected     Verdict = "rejected"
)

type ReportStatus string

const (
	ReportNone    ReportStatus = "none"
	ReportPending ReportStatus = "pending"
	ReportSent    ReportStatus = "sent"
)

// Personas assigned on the first inbound turn.
const (
	PersonaElderly  = "elderly"
	PersonaCautious = "cautious"
	PersonaNaive    = "naive"
	PersonaDefault  = "default"
)

// Turn is one message. Turns are appended and never changed.
type Turn struct {
	Seq       int                    `json:"seq"`
	Sender    Sender                 `json:"sender"`
	Text      string                 `json:"text"`
	Timestamp time.Time              `json:"timestamp"`
	Intel     extractor.Intelligence `json:"intel"`
}

// Fact is something the counterparty already disclosed, keyed by type and
// normalized value. Turn is the inbound turn it was first seen on.
type Fact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Turn  int    `json:"turn"`
}

// TopicMark tags one turn with the topics it touched.
type TopicMark struct {
	Seq    int              `json:"seq"`
	Sender Sender           `json:"sender"`
	Topics []patterns.Topic `json:"topics"`
}

// Session is the complete state of one conversation.
type Session struct {
	ID           string                 `json:"session_id"`
	Turns        []Turn                 `json:"turns"`
	Stage        Stage                  `json:"stage"`
	Facts        []Fact                 `json:"facts"`
	Demands      []Fact                 `json:"demands,omitempty"`
	Topics       []TopicMark            `json:"topics"`
	Ledger       Ledger                 `json:"ledger"`
	Persona      string                 `json:"persona"`
	Intel        extractor.Intelligence `json:"intel"`
	Verdict      Verdict                `json:"verdict"`
	ScamType     string                 `json:"scam_type"`
	Confidence   float64                `json:"confidence"`
	RiskLevel    string                 `json:"risk_level"`
	Tactics      []string               `json:"tactics"`
	NonScamTurns int                    `json:"non_scam_turns"`

	ReportStatus       ReportStatus `json:"report_status"`
	ReportedCategories []string     `json:"reported_categories,omitempty"`
	ReportedAt         *time.Time   `json:"reported_at,omitempty"`

	Channel   string    `json:"channel,omitempty"`
	Language  string    `json:"language,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InboundCount is the number of counterparty turns. Stage, persona and the
// engagement policy all count these.
func (s *Session) InboundCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.Sender == SenderCounterparty {
			n++
		}
	}
	return n
}

// LastSeq returns the sequence number of the latest turn, 0 when empty.
func (s *Session) LastSeq() int {
	if len(s.Turns) == 0 {
		return 0
	}
	return s.Turns[len(s.Turns)-1].Seq
}

// CounterpartyTexts returns the text of every inbound turn, oldest first.
func (s *Session) CounterpartyTexts() []string {
	var out []string
	for _, t := range s.Turns {
		if t.Sender == SenderCounterparty {
			out = append(out, t.Text)
		}
	}
	return out
}

// Recent returns up to n latest turns.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// LatestTopics returns the topics tagged on the newest inbound turn.
func (s *Session) LatestTopics() []patterns.Topic {
	for i := len(s.Topics) - 1; i >= 0; i-- {
		if s.Topics[i].Sender == SenderCounterparty {
			return s.Topics[i].Topics
		}
	}
	return nil
}

// RecentAgentTopics returns the topics the agent raised in its last n replies.
func (s *Session) RecentAgentTopics(n int) []patterns.Topic {
	var out []patterns.Topic
	seen := make(map[patterns.Topic]bool)
	for i := len(s.Topics) - 1; i >= 0 && n > 0; i-- {
		if s.Topics[i].Sender != SenderAgent {
			continue
		}
		n--
		for _, t := range s.Topics[i].Topics {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Clone returns a deep copy. Turns and topic marks are immutable, so their
// elements are shared but the slices are not.
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = append([]Turn(nil), s.Turns...)
	c.Facts = append([]Fact(nil), s.Facts...)
	c.Demands = append([]Fact(nil), s.Demands...)
	c.Topics = append([]TopicMark(nil), s.Topics...)
	c.Ledger = s.Ledger.clone()
	c.Intel = s.Intel.Clone()
	c.Tactics = append([]string(nil), s.Tactics...)
	c.ReportedCategories = append([]string(nil), s.ReportedCategories...)
	if s.ReportedAt != nil {
		at := *s.ReportedAt
		c.ReportedAt = &at
	}
	return &c
}
