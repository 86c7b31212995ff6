package extractor

import (
	"log/slog"

	"github.com/MikeSquared-Agency/decoy/internal/patterns"
)

type Extractor struct {
	lib    *patterns.Library
	logger *slog.Logger
}

func New(lib *patterns.Library, logger *slog.Logger) *Extractor {
	return &Extractor{lib: lib, logger: logger}
}

// Extract runs every matcher over text and returns the values not already
// present in prior. It holds no state between calls and never fails; text the
// matchers cannot make sense of simply yields nothing.
func (e *Extractor) Extract(text string, prior Intelligence) Result {
	var fresh Intelligence

	for _, v := range e.lib.BankAccounts(text) {
		fresh.BankAccounts = appendNew(fresh.BankAccounts, prior.BankAccounts, v)
	}
	for _, v := range e.lib.PaymentHandles(text) {
		fresh.PaymentHandles = appendNew(fresh.PaymentHandles, prior.PaymentHandles, v)
	}
	for _, v := range e.lib.Phones(text) {
		fresh.PhoneNumbers = appendNew(fresh.PhoneNumbers, prior.PhoneNumbers, v)
	}

	urls := e.lib.URLs(text)
	for _, u := range urls {
		fresh.PhishingLinks = appendNew(fresh.PhishingLinks, prior.PhishingLinks, u.Normalized)
	}
	for _, v := range e.lib.Emails(text) {
		fresh.PhishingLinks = appendNew(fresh.PhishingLinks, prior.PhishingLinks, v)
	}

	for _, h := range e.lib.Keywords(text) {
		fresh.SuspiciousKeywords = appendNew(fresh.SuspiciousKeywords, prior.SuspiciousKeywords, h.Phrase)
	}

	res := Result{
		New:         fresh,
		Found:       !fresh.Empty() || len(fresh.SuspiciousKeywords) > 0,
		Tactics:     e.lib.Tactics(text),
		Topics:      e.lib.Topics(text),
		Disclosures: e.lib.Disclosures(text),
		URLs:        urls,
	}

	if !fresh.Empty() {
		e.logger.Debug("intelligence extracted",
			"bank_accounts", len(fresh.BankAccounts),
			"payment_handles", len(fresh.PaymentHandles),
			"phones", len(fresh.PhoneNumbers),
			"links", len(fresh.PhishingLinks),
		)
	}
	return res
}

func appendNew(dst, prior []string, v string) []string {
	if v == "" || contains(prior, v) || contains(dst, v) {
		return dst
	}
	return append(dst, v)
}
