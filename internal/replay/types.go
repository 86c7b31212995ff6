package replay

import (
	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Transcript is one recorded conversation, replayed message by message.
type Transcript struct {
	SessionID string              `json:"sessionId"`
	Channel   string              `json:"channel,omitempty"`
	Messages  []processor.Message `json:"messages"`
	Expected  *Expectation        `json:"expected,omitempty"`
}

// Expectation is an optional label on a transcript.
type Expectation struct {
	ScamDetected bool   `json:"scamDetected"`
	ScamType     string `json:"scamType,omitempty"`
}

// Counterparty returns the messages the engine should receive. Agent turns
// from the recording are dropped since the engine writes its own.
func (t Transcript) Counterparty() []processor.Message {
	var out []processor.Message
	for _, m := range t.Messages {
		if m.Sender == "" || processor.IsCounterparty(m.Sender) {
			out = append(out, m)
		}
	}
	return out
}

// Outcome is what one transcript produced.
type Outcome struct {
	Path         string
	SessionID    string
	Inbound      int
	Skipped      int // messages rejected as malformed
	ScamDetected bool
	ScamType     string
	Confidence   float64
	DetectedAt   int // inbound turn of the first positive verdict, 0 if none
	IntelItems   int
	Categories   []string
	ReportStatus session.ReportStatus
	Expected     *Expectation
	Err          string
}
