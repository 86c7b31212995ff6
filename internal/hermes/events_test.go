package hermes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyEventParsing(t *testing.T) {
	raw := `{
		"event_id": "evt-1",
		"session_id": "sess-001",
		"reply": "Which OTP sir?",
		"source": "generated",
		"stage": "anxious",
		"scam_detected": true,
		"timestamp": "2026-03-01T12:00:00Z"
	}`

	var evt ReplyEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &evt))
	assert.Equal(t, "sess-001", evt.SessionID)
	assert.Equal(t, "Which OTP sir?", evt.Reply)
	assert.Equal(t, "generated", evt.Source)
	assert.True(t, evt.ScamDetected)
	assert.Equal(t, 2026, evt.Timestamp.Year())
	assert.Empty(t, evt.Error)
}

func TestReportSentEventOmitsNothing(t *testing.T) {
	data, err := json.Marshal(ReportSentEvent{SessionID: "s1", Reason: "turn_limit"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"event_id", "session_id", "reason", "categories", "total_messages", "timestamp"} {
		assert.Contains(t, fields, key)
	}
}
