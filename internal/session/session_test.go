package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

type harness struct {
	m   *Machine
	ext *extractor.Extractor
	cls *classifier.Classifier
}

func newHarness() *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib := patterns.Default()
	m := NewMachine(lib, DefaultConfig())
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return &harness{
		m:   m,
		ext: extractor.New(lib, logger),
		cls: classifier.New(lib, nil, classifier.DefaultConfig(), logger),
	}
}

func (h *harness) observe(s *Session, text string) *Session {
	a := Analysis{
		Extraction:     h.ext.Extract(text, s.Intel),
		Classification: h.cls.Classify(context.Background(), text, s.CounterpartyTexts()),
	}
	return h.m.Observe(s, Inbound{Text: text}, a)
}

func TestStageFor(t *testing.T) {
	m := NewMachine(patterns.Default(), DefaultConfig())
	tests := []struct {
		turns int
		want  Stage
	}{
		{1, StageAnxious}, {2, StageAnxious}, {3, StageAnxious},
		{4, StageConfused}, {5, StageConfused}, {7, StageConfused},
		{8, StageFrustrated}, {9, StageFrustrated}, {10, StageFrustrated},
		{11, StageSuspicious}, {12, StageSuspicious}, {100, StageSuspicious},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("turn %d", tt.turns), func(t *testing.T) {
			assert.Equal(t, tt.want, m.StageFor(tt.turns))
		})
	}
}

func TestObserve_StageNonDecreasing(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	prev := s.Stage.Rank()
	for i := 1; i <= 15; i++ {
		text := "hello again"
		if i%2 == 0 {
			text = "Share OTP immediately or account blocked"
		}
		s = h.observe(s, text)
		require.GreaterOrEqual(t, s.Stage.Rank(), prev, "turn %d", i)
		prev = s.Stage.Rank()
		assert.Equal(t, h.m.StageFor(i), s.Stage, "turn %d", i)
	}
	assert.Equal(t, StageSuspicious, s.Stage)

	// low-confidence message after suspicious keeps the stage
	s = h.m.Observe(s, Inbound{Text: "ok"}, Analysis{})
	assert.Equal(t, StageSuspicious, s.Stage)
}

func TestObserve_StageNeverRegressesUnderNewThresholds(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	for i := 0; i < 12; i++ {
		s = h.observe(s, "hello")
	}
	require.Equal(t, StageSuspicious, s.Stage)

	stricter := NewMachine(patterns.Default(), Config{AnxiousUntil: 20, ConfusedUntil: 30, FrustratedUntil: 40})
	s = stricter.Observe(s, Inbound{Text: "hello"}, Analysis{})
	assert.Equal(t, StageSuspicious, s.Stage)
}

func TestObserve_DoesNotMutateInput(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	s = h.observe(s, "Pay to fraud@ybl now")
	before := s.Clone()

	_ = h.observe(s, "Also call 9876543210, account 123456789012 for transfer")

	assert.Equal(t, before, s)
}

func TestObserve_VerdictSticky(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	s = h.observe(s, "Your bank account will be blocked today. Verify immediately and share OTP.")
	require.Equal(t, VerdictConfirmed, s.Verdict)

	for i := 0; i < 10; i++ {
		s = h.observe(s, "thank you, goodbye")
	}
	assert.Equal(t, VerdictConfirmed, s.Verdict)
	assert.Equal(t, "phishing", s.ScamType)
	assert.InDelta(t, 1.0, s.Confidence, 1e-9)
}

func TestObserve_VerdictRejectedAfterBenignTurns(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	for i := 0; i < DefaultConfig().RejectAfter-1; i++ {
		s = h.observe(s, "hi, how is the weather")
		require.Equal(t, VerdictUndetermined, s.Verdict)
	}
	s = h.observe(s, "hi, how is the weather")
	assert.Equal(t, VerdictRejected, s.Verdict)

	s = h.observe(s, "Your account is blocked, share OTP immediately")
	assert.Equal(t, VerdictConfirmed, s.Verdict)
}

func TestObserve_IntelAndFactsDeduplicated(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	s = h.observe(s, "Send money to scammer.fraud@fakebank")
	s = h.observe(s, "I said send to scammer.fraud@fakebank, or call +91 98765 43210")
	s = h.observe(s, "scammer.fraud@fakebank!! 9876543210")

	assert.Equal(t, []string{"scammer.fraud@fakebank"}, s.Intel.PaymentHandles)
	assert.Equal(t, []string{"+919876543210"}, s.Intel.PhoneNumbers)

	var handles []Fact
	for _, f := range s.Facts {
		if f.Type == extractor.CategoryPaymentHandle {
			handles = append(handles, f)
		}
	}
	require.Len(t, handles, 1)
	assert.Equal(t, 1, handles[0].Turn)

	view := s.FactView()
	assert.True(t, view.Has(extractor.CategoryPhone, "+919876543210"))
	assert.True(t, view.HasType(extractor.CategoryPaymentHandle))
	assert.False(t, view.HasType(extractor.CategoryBankAccount))
}

func TestObserve_DisclosuresBecomeFacts(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	s = h.observe(s, "My name is Rahul Sharma from SBI, case no 7781/24")
	s = h.observe(s, "Again, this is from SBI")

	view := s.FactView()
	assert.True(t, view.Has("claimed_org", "sbi"))
	assert.True(t, view.Has("claimed_name", "Rahul Sharma"))
	assert.True(t, view.Has("case_number", "7781/24"))

	orgs := 0
	for _, f := range view.Values() {
		if f.Type == "claimed_org" {
			orgs++
		}
	}
	assert.Equal(t, 1, orgs)
}

func TestObserve_DemandsAreNotFacts(t *testing.T) {
	h := newHarness()
	s := h.observe(h.m.New("s1"), "Your bank account will be blocked today. Pay Rs. 2,000 fine.")

	assert.Zero(t, s.FactView().Len())
	require.Len(t, s.Demands, 2)
	assert.Equal(t, Fact{Type: "amount", Value: "2,000", Turn: 1}, s.Demands[0])
	assert.Equal(t, Fact{Type: "deadline", Value: "today", Turn: 1}, s.Demands[1])
}

func TestObserve_PersonaAssignedOnce(t *testing.T) {
	tests := []struct {
		name  string
		first string
		want  string
	}{
		{"phishing", "Share your OTP and card number", PersonaElderly},
		{"kyc", "Please link aadhaar for re-kyc", PersonaElderly},
		{"threat", "An arrest warrant is issued, police will come", PersonaCautious},
		{"lottery", "Congratulations, you have won a lucky draw", PersonaNaive},
		{"investment", "Guaranteed returns, double your money", PersonaNaive},
		{"none", "hello", PersonaDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			s := h.observe(h.m.New("s"), tt.first)
			assert.Equal(t, tt.want, s.Persona)

			s = h.observe(s, "Congratulations, arrest warrant, share OTP, double your money")
			assert.Equal(t, tt.want, s.Persona)
		})
	}
}

func TestObserve_TurnsAndTopics(t *testing.T) {
	h := newHarness()
	s := h.m.New("s1")
	s = h.observe(s, "Click http://bit.ly/x and share the OTP")
	s = h.m.Respond(s, Reply{Text: "Which link do you mean, the message is not opening.", Excuse: "network"})
	s = h.observe(s, "call me on 9876543210")

	require.Len(t, s.Turns, 3)
	for i, turn := range s.Turns {
		assert.Equal(t, i+1, turn.Seq)
	}
	assert.Equal(t, SenderAgent, s.Turns[1].Sender)
	assert.Equal(t, 2, s.InboundCount())
	assert.Equal(t, []string{"http://bit.ly/x"}, s.Turns[0].Intel.PhishingLinks)

	assert.Equal(t, []patterns.Topic{patterns.TopicPhone}, s.LatestTopics())
	assert.Contains(t, s.RecentAgentTopics(2), patterns.TopicLink)
	assert.Equal(t, []string{"which link do you mean"}, s.Ledger.Openers)
	assert.Equal(t, []string{"network"}, s.Ledger.Excuses)
}

func TestRespond_DoesNotMutateInput(t *testing.T) {
	h := newHarness()
	s := h.observe(h.m.New("s1"), "hello")
	before := s.Clone()
	_ = h.m.Respond(s, Reply{Text: "Who is this please, I do not know this number."})
	assert.Equal(t, before, s)
}

func TestOpener(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"I don't understand, what is this OTP about?", "i don't understand what is"},
		{"  \"Okay... which account?\"", "okay which account"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Opener(tt.in), tt.in)
	}
	assert.Equal(t, Opener("Sir, what is the branch name please"), Opener("sir what is the BRANCH, name?"))
}

func TestLedger_Record(t *testing.T) {
	var l Ledger
	l = l.record("a b c", "glasses")
	l = l.record("a b c", "glasses")
	l = l.record("", "")
	assert.Equal(t, []string{"a b c"}, l.Openers)
	assert.Equal(t, []string{"glasses"}, l.Excuses)
	assert.True(t, l.HasOpener("a b c"))
	assert.False(t, l.HasOpener(""))
}
