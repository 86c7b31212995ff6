package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

func sessionWith(verdict session.Verdict, inbound int, intel extractor.Intelligence) *session.Session {
	s := &session.Session{ID: "s1", Verdict: verdict, Intel: intel, ReportStatus: session.ReportNone}
	seq := 0
	for i := 0; i < inbound; i++ {
		seq++
		s.Turns = append(s.Turns, session.Turn{Seq: seq, Sender: session.SenderCounterparty, Text: fmt.Sprintf("in %d", i)})
		seq++
		s.Turns = append(s.Turns, session.Turn{Seq: seq, Sender: session.SenderAgent, Text: fmt.Sprintf("out %d", i)})
	}
	return s
}

func TestShouldReport(t *testing.T) {
	handle := extractor.Intelligence{PaymentHandles: []string{"scammer.fraud@fakebank"}}
	keywordsOnly := extractor.Intelligence{SuspiciousKeywords: []string{"otp"}}
	p := New(DefaultConfig())

	tests := []struct {
		name    string
		verdict session.Verdict
		inbound int
		intel   extractor.Intelligence
		want    bool
	}{
		{"confirmed, 3 turns, one handle", session.VerdictConfirmed, 3, handle, true},
		{"confirmed, 2 turns, nothing", session.VerdictConfirmed, 2, extractor.Intelligence{}, false},
		{"confirmed, 2 turns, one handle", session.VerdictConfirmed, 2, handle, false},
		{"confirmed, 5 turns, keywords only", session.VerdictConfirmed, 5, keywordsOnly, false},
		{"undetermined, 5 turns, one handle", session.VerdictUndetermined, 5, handle, false},
		{"rejected, 20 turns", session.VerdictRejected, 20, extractor.Intelligence{}, false},
		{"rejected, 21 turns", session.VerdictRejected, 21, extractor.Intelligence{}, false},
		{"undetermined, 21 turns", session.VerdictUndetermined, 21, extractor.Intelligence{}, false},
		{"confirmed, 20 turns, nothing", session.VerdictConfirmed, 20, extractor.Intelligence{}, false},
		{"confirmed, 21 turns, nothing", session.VerdictConfirmed, 21, extractor.Intelligence{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldReport(sessionWith(tt.verdict, tt.inbound, tt.intel)))
		})
	}
}

func TestEvaluate_MarksPendingOnCopy(t *testing.T) {
	p := New(DefaultConfig())
	s := sessionWith(session.VerdictConfirmed, 3, extractor.Intelligence{PhoneNumbers: []string{"+919876543210"}})

	next, reason := p.Evaluate(s)
	assert.Equal(t, ReasonConfirmed, reason)
	assert.Equal(t, session.ReportPending, next.ReportStatus)
	assert.Equal(t, session.ReportNone, s.ReportStatus)
}

func TestEvaluate_TurnLimit(t *testing.T) {
	p := New(DefaultConfig())

	next, reason := p.Evaluate(sessionWith(session.VerdictConfirmed, 21, extractor.Intelligence{}))
	assert.Equal(t, ReasonTurnLimit, reason)
	assert.Equal(t, session.ReportPending, next.ReportStatus)

	s := sessionWith(session.VerdictRejected, 30, extractor.Intelligence{})
	next, reason = p.Evaluate(s)
	assert.Equal(t, ReasonNone, reason)
	assert.Same(t, s, next)
	assert.Equal(t, session.ReportNone, next.ReportStatus)
}

func TestEvaluate_NotDue(t *testing.T) {
	p := New(DefaultConfig())
	s := sessionWith(session.VerdictConfirmed, 1, extractor.Intelligence{PhoneNumbers: []string{"+919876543210"}})

	next, reason := p.Evaluate(s)
	assert.Equal(t, ReasonNone, reason)
	assert.Same(t, s, next)
}

func TestEvaluate_ResendOnlyForNewCategories(t *testing.T) {
	p := New(DefaultConfig())
	s := sessionWith(session.VerdictConfirmed, 4, extractor.Intelligence{PaymentHandles: []string{"a@okaxis"}})
	s.ReportStatus = session.ReportSent
	s.ReportedCategories = []string{extractor.CategoryPaymentHandle}

	next, reason := p.Evaluate(s)
	assert.Equal(t, ReasonNone, reason)
	assert.Equal(t, session.ReportSent, next.ReportStatus)

	s.Intel.PaymentHandles = append(s.Intel.PaymentHandles, "b@ybl")
	_, reason = p.Evaluate(s)
	assert.Equal(t, ReasonNone, reason, "more values in a reported category do not trigger a resend")

	s.Intel.BankAccounts = []string{"123456789012"}
	next, reason = p.Evaluate(s)
	assert.Equal(t, ReasonNewIntel, reason)
	assert.Equal(t, session.ReportPending, next.ReportStatus)
	assert.Equal(t, []string{extractor.CategoryBankAccount}, Unreported(next))
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})
	require.Equal(t, DefaultConfig(), p.cfg)

	p = New(Config{MinTurns: 5, MaxTurns: 2})
	assert.Equal(t, 5, p.cfg.MinTurns)
	assert.Equal(t, 20, p.cfg.MaxTurns)
}
