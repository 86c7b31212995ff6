package processor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Limits on inbound payloads.
const (
	MaxSessionIDLen = 128
	MaxMessageLen   = 4000
	MaxHistory      = 50
)

// Sender values accepted on the wire. "scammer" and "user" are what the
// upstream platform sends; the session package's own names are accepted too.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// Inbound is one message from the counterparty, with whatever history and
// channel metadata the caller has.
type Inbound struct {
	SessionID string    `json:"sessionId"`
	Message   Message   `json:"message"`
	History   []Message `json:"conversationHistory,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp"`
}

type Metadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// Validate checks the message can be processed. History entries with empty
// text are tolerated and skipped later; longer than MaxMessageLen they are cut
// to that length when read.
func (in *Inbound) Validate() error {
	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		return fmt.Errorf("%w: sessionId is required", ErrMalformedInput)
	}
	if len(id) > MaxSessionIDLen {
		return fmt.Errorf("%w: sessionId longer than %d characters", ErrMalformedInput, MaxSessionIDLen)
	}
	if err := in.Message.validate(); err != nil {
		return err
	}
	if in.Message.Sender != "" && !IsCounterparty(in.Message.Sender) {
		return fmt.Errorf("%w: message sender must be %q, got %q", ErrMalformedInput, SenderScammer, in.Message.Sender)
	}
	for i, m := range in.History {
		if _, ok := senderOf(m.Sender); !ok {
			return fmt.Errorf("%w: conversationHistory[%d] has unknown sender %q", ErrMalformedInput, i, m.Sender)
		}
	}
	return nil
}

func (m Message) validate() error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return fmt.Errorf("%w: message text is required", ErrMalformedInput)
	}
	if len(text) > MaxMessageLen {
		return fmt.Errorf("%w: message text longer than %d bytes", ErrMalformedInput, MaxMessageLen)
	}
	return nil
}

// clip trims text and cuts it to MaxMessageLen bytes on a rune boundary.
func clip(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= MaxMessageLen {
		return text
	}
	cut := MaxMessageLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// recent returns the last MaxHistory entries of history.
func recent(history []Message) []Message {
	if len(history) > MaxHistory {
		return history[len(history)-MaxHistory:]
	}
	return history
}

func senderOf(s string) (session.Sender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SenderScammer, string(session.SenderCounterparty):
		return session.SenderCounterparty, true
	case SenderUser, string(session.SenderAgent):
		return session.SenderAgent, true
	default:
		return "", false
	}
}

// IsCounterparty reports whether a wire sender value names the other party.
func IsCounterparty(s string) bool {
	sender, ok := senderOf(s)
	return ok && sender == session.SenderCounterparty
}

// Timestamp accepts RFC 3339 strings or epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		return fmt.Errorf("unrecognised timestamp %q", s)
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("unrecognised timestamp %s", raw)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
