package extractor

import "github.com/MikeSquared-Agency/decoy/internal/patterns"

// Intelligence categories. The first four double as fact types.
const (
	CategoryBankAccount   = "bank_account"
	CategoryPaymentHandle = "payment_handle"
	CategoryPhone         = "phone"
	CategoryLink          = "link"
	CategoryKeyword       = "keyword"
)

// Intelligence is the structured findings for a session. Every list keeps
// first-seen order and holds each normalized value once.
type Intelligence struct {
	BankAccounts       []string `json:"bank_accounts"`
	PaymentHandles     []string `json:"payment_handles"`
	PhoneNumbers       []string `json:"phone_numbers"`
	PhishingLinks      []string `json:"phishing_links"`
	SuspiciousKeywords []string `json:"suspicious_keywords"`
}

// Result is what one message yielded.
type Result struct {
	New         Intelligence          // only values absent from the prior intelligence
	Found       bool                  // New holds at least one value
	Tactics     []string              // manipulation tactics present in the message
	Topics      []patterns.Topic      // subjects the message raises
	Disclosures []patterns.Disclosure // what the sender said about themselves
	URLs        []patterns.URL        // every link with its phishing verdict
}
