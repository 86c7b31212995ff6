package extractor

import "strings"

// Merge returns a copy of i with the values of other appended where absent.
func (i Intelligence) Merge(other Intelligence) Intelligence {
	return Intelligence{
		BankAccounts:       union(i.BankAccounts, other.BankAccounts),
		PaymentHandles:     union(i.PaymentHandles, other.PaymentHandles),
		PhoneNumbers:       union(i.PhoneNumbers, other.PhoneNumbers),
		PhishingLinks:      union(i.PhishingLinks, other.PhishingLinks),
		SuspiciousKeywords: union(i.SuspiciousKeywords, other.SuspiciousKeywords),
	}
}

// Empty reports whether no actionable category holds a value. Keywords alone
// are not actionable intelligence.
func (i Intelligence) Empty() bool {
	return len(i.BankAccounts) == 0 && len(i.PaymentHandles) == 0 &&
		len(i.PhoneNumbers) == 0 && len(i.PhishingLinks) == 0
}

// Count returns the number of actionable values.
func (i Intelligence) Count() int {
	return len(i.BankAccounts) + len(i.PaymentHandles) + len(i.PhoneNumbers) + len(i.PhishingLinks)
}

// Categories lists the actionable categories that hold at least one value.
func (i Intelligence) Categories() []string {
	var out []string
	if len(i.BankAccounts) > 0 {
		out = append(out, CategoryBankAccount)
	}
	if len(i.PaymentHandles) > 0 {
		out = append(out, CategoryPaymentHandle)
	}
	if len(i.PhoneNumbers) > 0 {
		out = append(out, CategoryPhone)
	}
	if len(i.PhishingLinks) > 0 {
		out = append(out, CategoryLink)
	}
	return out
}

// Values returns the values held for a category.
func (i Intelligence) Values(category string) []string {
	switch category {
	case CategoryBankAccount:
		return i.BankAccounts
	case CategoryPaymentHandle:
		return i.PaymentHandles
	case CategoryPhone:
		return i.PhoneNumbers
	case CategoryLink:
		return i.PhishingLinks
	case CategoryKeyword:
		return i.SuspiciousKeywords
	}
	return nil
}

// Has reports whether the category already holds value.
func (i Intelligence) Has(category, value string) bool {
	return contains(i.Values(category), value)
}

// Clone returns a deep copy.
func (i Intelligence) Clone() Intelligence {
	return Intelligence{}.Merge(i)
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			k := strings.ToLower(v)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
