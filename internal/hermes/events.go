package hermes

import "time"

// NATS subjects used by the engine.
const (
	SubjectInbound       = "decoy.message.inbound"
	SubjectReply         = "decoy.message.reply"
	SubjectReportSent    = "decoy.report.sent"
	SubjectScamConfirmed = "decoy.scam.confirmed"

	// InboundQueue is the queue group replicas join on SubjectInbound.
	InboundQueue = "decoy-engine"
)

// ReplyEvent carries the agent's reply for one inbound message.
type ReplyEvent struct {
	EventID      string    `json:"event_id"`
	SessionID    string    `json:"session_id"`
	Reply        string    `json:"reply"`
	Source       string    `json:"source"`
	Stage        string    `json:"stage"`
	ScamDetected bool      `json:"scam_detected"`
	Timestamp    time.Time `json:"timestamp"`
	Error        string    `json:"error,omitempty"`
}

// ScamConfirmedEvent is emitted once, on the turn a session's verdict
// becomes confirmed.
type ScamConfirmedEvent struct {
	EventID    string    `json:"event_id"`
	SessionID  string    `json:"session_id"`
	ScamType   string    `json:"scam_type"`
	Confidence float64   `json:"confidence"`
	Turn       int       `json:"turn"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReportSentEvent is emitted after the final report was accepted.
type ReportSentEvent struct {
	EventID       string    `json:"event_id"`
	SessionID     string    `json:"session_id"`
	Reason        string    `json:"reason"`
	Categories    []string  `json:"categories"`
	TotalMessages int       `json:"total_messages"`
	Timestamp     time.Time `json:"timestamp"`
}
