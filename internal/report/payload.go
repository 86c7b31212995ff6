package report

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// ExtractedIntelligence uses the field names the reporting endpoint expects.
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

type Payload struct {
	SessionID              string                `json:"sessionId"`
	ScamDetected           bool                  `json:"scamDetected"`
	TotalMessagesExchanged int                   `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes             string                `json:"agentNotes"`
}

// Build assembles the report for s. Empty categories are sent as [] rather
// than null.
func Build(s *session.Session, lib *patterns.Library) Payload {
	return Payload{
		SessionID:              s.ID,
		ScamDetected:           s.Verdict == session.VerdictConfirmed,
		TotalMessagesExchanged: len(s.Turns),
		ExtractedIntelligence: ExtractedIntelligence{
			BankAccounts:       nonNil(s.Intel.BankAccounts),
			UPIIDs:             nonNil(s.Intel.PaymentHandles),
			PhishingLinks:      nonNil(s.Intel.PhishingLinks),
			PhoneNumbers:       nonNil(s.Intel.PhoneNumbers),
			SuspiciousKeywords: nonNil(s.Intel.SuspiciousKeywords),
		},
		AgentNotes: Notes(s, lib),
	}
}

// Notes summarises the counterparty's behaviour in a few sentences, e.g.
// "Scammer used urgency tactics with payment redirection via UPI. Identified
// as phishing scam".
func Notes(s *session.Session, lib *patterns.Library) string {
	var parts []string

	if len(s.Tactics) > 0 {
		described := make([]string, len(s.Tactics))
		for i, t := range s.Tactics {
			described[i] = lib.TacticNote(t)
		}
		parts = append(parts, "Scammer used "+joinAnd(described))
	}

	var actions []string
	if len(s.Intel.PaymentHandles) > 0 {
		actions = append(actions, "payment redirection via UPI")
	}
	if len(s.Intel.BankAccounts) > 0 {
		actions = append(actions, "bank account collection")
	}
	if len(s.Intel.PhoneNumbers) > 0 {
		actions = append(actions, "phone number extraction")
	}
	if len(s.Intel.PhishingLinks) > 0 {
		actions = append(actions, "phishing link distribution")
	}
	if len(actions) > 0 {
		if len(parts) > 0 {
			parts[0] += " with " + actions[0]
			if len(actions) > 1 {
				parts = append(parts, "Also attempted: "+strings.Join(actions[1:], ", "))
			}
		} else {
			parts = append(parts, "Scammer attempted "+strings.Join(actions, ", "))
		}
	}

	view := s.FactView()
	for _, f := range view.Values() {
		if f.Type == "claimed_org" {
			parts = append(parts, fmt.Sprintf("Claimed to represent %s", strings.ToUpper(f.Value)))
			break
		}
	}
	for _, d := range s.Demands {
		if d.Type == "amount" {
			parts = append(parts, "Demanded Rs "+d.Value)
			break
		}
	}

	if s.ScamType != "" {
		parts = append(parts, fmt.Sprintf("Identified as %s scam", s.ScamType))
	}

	if len(parts) == 0 {
		return "Scammer engagement completed"
	}
	return strings.Join(parts, ". ")
}

func joinAnd(items []string) string {
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return append([]string(nil), v...)
}
