package patterns

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoads(t *testing.T) {
	lib := Default()
	require.NotNil(t, lib)
	assert.Same(t, lib, Default())
	assert.Equal(t, "elderly", lib.Persona(FamilyPhishing))
	assert.Equal(t, "", lib.Persona(FamilyUrgency))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "families: [unclosed"},
		{"no tlds", "urls: {tlds: []}"},
		{"bad tactic", "urls: {tlds: [com]}\ntactics:\n  - name: x\n    pattern: '('\n"},
		{"disclosure without group", "urls: {tlds: [com]}\ndisclosures:\n  - type: x\n    pattern: 'abc'\n"},
		{"max below min", "urls: {tlds: [com]}\nbank_account: {min_digits: 10, max_digits: 5}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestPaymentHandles(t *testing.T) {
	lib := Default()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"invented provider", "send to scammer.fraud@fakebank now", []string{"scammer.fraud@fakebank"}},
		{"standard provider", "my upi is Rahul99@ybl.", []string{"rahul99@ybl"}},
		{"public email rejected", "mail someone@gmail.com for details", nil},
		{"excluded provider without tld", "write to someone@gmail", nil},
		{"custom domain email", "write to support@sbi-help.com", nil},
		{"dedup", "pay x.y@paytm or X.Y@PAYTM", []string{"x.y@paytm"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lib.PaymentHandles(tt.text))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	lib := Default()
	for _, in := range []string{"9876543210", "+919876543210", "09876543210", "+91 98765-43210", "919876543210"} {
		assert.Equal(t, "+919876543210", lib.NormalizePhone(in), in)
	}
	for _, in := range []string{"12345", "1234567890", "", "abc", "+4420794601234"} {
		assert.Equal(t, "", lib.NormalizePhone(in), in)
	}
}

func TestPhones(t *testing.T) {
	lib := Default()
	got := lib.Phones("Call 9876543210 or +91 87654 32109, also 09876543210. Ref 123456789012345")
	assert.Equal(t, []string{"+919876543210", "+918765432109"}, got)
}

func TestBankAccounts(t *testing.T) {
	lib := Default()
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"cue before", "Transfer to account number 123456789012 today", []string{"123456789012"}},
		{"a/c cue", "a/c 50100234567 ifsc HDFC0001", []string{"50100234567"}},
		{"cue after", "12345678901 is the beneficiary account", []string{"12345678901"}},
		{"no cue", "your code is 12345678901", nil},
		{"phone shaped", "account holder mobile 9876543210", nil},
		{"employee id", "my employee id 44556677 for verification", nil},
		{"reject cue closer than account cue", "account blocked, ticket 99887766", nil},
		{"too long", "account 1234567890123456789012", nil},
		{"too short", "account 1234567", nil},
		{"cue beyond the byte window", "account " + strings.Repeat("x", 300) + " 123456789012", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lib.BankAccounts(tt.text))
		})
	}
}

func TestBankAccounts_LinearInInputSize(t *testing.T) {
	lib := Default()
	elapsed := func(text string) time.Duration {
		start := time.Now()
		lib.BankAccounts(text)
		return time.Since(start)
	}

	for _, unit := range []string{"12345678 ", "account 12345678x ", "ab12345678"} {
		small := elapsed(strings.Repeat(unit, 4000))
		large := elapsed(strings.Repeat(unit, 16000))
		assert.Less(t, large, 16*small+200*time.Millisecond, "unit %q", unit)
	}
}

func TestURLs(t *testing.T) {
	lib := Default()
	urls := lib.URLs("Click http://bit.ly/abc123 or visit www.sbi-kyc-update.xyz/login. Official site is sbi.co.in, mail help@hdfc.com")
	require.Len(t, urls, 3)

	assert.Equal(t, "http://bit.ly/abc123", urls[0].Raw)
	assert.True(t, urls[0].Phishing)
	assert.Contains(t, urls[0].Reasons, "shortener")

	assert.Equal(t, "www.sbi-kyc-update.xyz/login", urls[1].Raw)
	assert.Contains(t, urls[1].Reasons, "suspicious_tld")
	assert.Contains(t, urls[1].Reasons, "brand_lure")

	assert.Equal(t, "sbi.co.in", urls[2].Normalized)
	assert.False(t, urls[2].Phishing)
}

func TestURLs_IPHost(t *testing.T) {
	urls := Default().URLs("open http://192.168.10.4/verify now")
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0].Reasons, "ip_host")
}

func TestEmails(t *testing.T) {
	assert.Equal(t, []string{"help@hdfc-care.com"}, Default().Emails("Write to Help@HDFC-care.com."))
}

func TestKeywords(t *testing.T) {
	hits := Default().Keywords("Your bank account will be blocked today. Verify immediately and share OTP. OTP otp!")
	byFamily := make(map[Family]float64)
	count := make(map[string]int)
	for _, h := range hits {
		byFamily[h.Family] += h.Weight
		count[string(h.Family)+"/"+h.Phrase]++
	}
	assert.Equal(t, 1, count["phishing/otp"])
	assert.Equal(t, 1, count["threat/blocked"])
	assert.Equal(t, 1, count["phishing/verify immediately"])
	assert.Equal(t, 1, count["urgency/immediately"])
	assert.InDelta(t, 1.5, byFamily[FamilyPhishing], 1e-9)
	assert.InDelta(t, 0.4, byFamily[FamilyThreat], 1e-9)
	assert.InDelta(t, 0.5, byFamily[FamilyUrgency], 1e-9)
}

func TestKeywords_WordBoundaries(t *testing.T) {
	hits := Default().Keywords("the pinnacle of spinning")
	assert.Empty(t, hits)
}

func TestTacticsAndTopics(t *testing.T) {
	lib := Default()
	text := "This is SBI officer. Your account will be blocked, send OTP immediately"
	assert.Equal(t, []string{"urgency", "fear", "impersonation", "payment_request"}, lib.Tactics(text))
	topics := lib.Topics(text)
	assert.Contains(t, topics, TopicOTP)
	assert.Contains(t, topics, TopicThreat)
	assert.NotContains(t, topics, TopicLink)
}

func TestDisclosures(t *testing.T) {
	lib := Default()
	got := lib.Disclosures("Hello, my name is Rahul Sharma from SBI. Employee ID: EMP4521. Case no 7781/24, pay Rs. 5,000 within 2 hours")
	want := []Disclosure{
		{Type: "claimed_org", Value: "sbi"},
		{Type: "claimed_name", Value: "Rahul Sharma"},
		{Type: "employee_id", Value: "emp4521"},
		{Type: "case_number", Value: "7781/24"},
		{Type: "amount", Value: "5,000", Demand: true},
		{Type: "deadline", Value: "within 2 hours", Demand: true},
	}
	assert.Equal(t, want, got)
}

func TestEscalating(t *testing.T) {
	lib := Default()
	assert.False(t, lib.Escalating([]string{"send the otp", "hello"}))
	assert.True(t, lib.Escalating([]string{"send the otp", "share your pin", "ok"}))
}

func TestMatchers_Idempotent(t *testing.T) {
	lib := Default()
	text := "pay fraud@okbank, call +91 98765 43210, a/c 123456789012, http://bit.ly/x"
	assert.Equal(t, lib.PaymentHandles(text), lib.PaymentHandles(text))
	assert.Equal(t, lib.Phones(text), lib.Phones(text))
	assert.Equal(t, lib.BankAccounts(text), lib.BankAccounts(text))
	assert.Equal(t, lib.URLs(text), lib.URLs(text))
}

func TestMatchers_MalformedInput(t *testing.T) {
	lib := Default()
	inputs := []string{"\x00\xff\xfe", strings.Repeat("@", 5000), strings.Repeat("9", 10000), "http://", "@@@.com"}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			lib.PaymentHandles(in)
			lib.Phones(in)
			lib.BankAccounts(in)
			lib.URLs(in)
			lib.Emails(in)
			lib.Keywords(in)
			lib.Disclosures(in)
		})
	}
}
