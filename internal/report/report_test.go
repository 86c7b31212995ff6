package report

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scamSession() *session.Session {
	return &session.Session{
		ID:       "sess-42",
		Verdict:  session.VerdictConfirmed,
		ScamType: "phishing",
		Tactics:  []string{"urgency", "payment_request"},
		Turns: []session.Turn{
			{Seq: 1, Sender: session.SenderCounterparty, Text: "a"},
			{Seq: 2, Sender: session.SenderAgent, Text: "b"},
			{Seq: 3, Sender: session.SenderCounterparty, Text: "c"},
		},
		Intel: extractor.Intelligence{
			PaymentHandles:     []string{"scammer.fraud@fakebank"},
			PhoneNumbers:       []string{"+919876543210"},
			SuspiciousKeywords: []string{"otp", "blocked"},
		},
	}
}

func TestNotes(t *testing.T) {
	lib := patterns.Default()
	tests := []struct {
		name string
		s    *session.Session
		want string
	}{
		{
			name: "tactics and intel",
			s:    scamSession(),
			want: "Scammer used urgency tactics and payment redirection with payment redirection via UPI. " +
				"Also attempted: phone number extraction. Identified as phishing scam",
		},
		{
			name: "intel only",
			s:    &session.Session{Intel: extractor.Intelligence{BankAccounts: []string{"123456789012"}}},
			want: "Scammer attempted bank account collection",
		},
		{
			name: "three tactics",
			s:    &session.Session{Tactics: []string{"fear", "impersonation", "urgency"}},
			want: "Scammer used fear/threat tactics, impersonation and urgency tactics",
		},
		{
			name: "claims and demands",
			s: &session.Session{
				Facts:    []session.Fact{{Type: "claimed_org", Value: "sbi", Turn: 1}},
				Demands:  []session.Fact{{Type: "deadline", Value: "today", Turn: 1}, {Type: "amount", Value: "5,000", Turn: 2}},
				ScamType: "threat",
			},
			want: "Claimed to represent SBI. Demanded Rs 5,000. Identified as threat scam",
		},
		{name: "nothing", s: &session.Session{}, want: "Scammer engagement completed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Notes(tt.s, lib))
		})
	}
}

func TestBuild(t *testing.T) {
	p := Build(scamSession(), patterns.Default())
	assert.Equal(t, "sess-42", p.SessionID)
	assert.True(t, p.ScamDetected)
	assert.Equal(t, 3, p.TotalMessagesExchanged)
	assert.Equal(t, []string{"scammer.fraud@fakebank"}, p.ExtractedIntelligence.UPIIDs)
	assert.Equal(t, []string{}, p.ExtractedIntelligence.BankAccounts)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	intel := generic["extractedIntelligence"].(map[string]any)
	assert.Equal(t, []any{}, intel["bankAccounts"])
	assert.Equal(t, []any{"scammer.fraud@fakebank"}, intel["upiIds"])
	assert.Contains(t, generic, "agentNotes")
}

func TestDeliver_Success(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "secret", discardLogger())
	require.NoError(t, c.Deliver(context.Background(), Build(scamSession(), patterns.Default())))
	assert.Equal(t, "sess-42", got.SessionID)
	assert.Equal(t, []string{"+919876543210"}, got.ExtractedIntelligence.PhoneNumbers)
}

func TestDeliver_NonOKFails(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		c := NewClient(server.URL, "", discardLogger())
		err := c.Deliver(context.Background(), Payload{SessionID: "s"})
		assert.ErrorIs(t, err, ErrDeliveryFailed, "status %d", status)
		server.Close()
	}
}

func TestDeliver_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewClient(url, "", discardLogger()).Deliver(context.Background(), Payload{SessionID: "s"})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}
