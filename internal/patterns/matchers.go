package patterns

import (
	"regexp"
	"strings"
	"unicode"
)

var ipv4Re = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)

// URL is a link found in free text.
type URL struct {
	Raw        string
	Normalized string
	Phishing   bool
	Reasons    []string
}

// BankAccounts returns digit runs that look like bank account numbers. A run
// is accepted only when an account cue word sits within the token window
// around it and no closer non-account cue (employee id, ticket, ...) precedes it.
func (l *Library) BankAccounts(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, loc := range l.digitsRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isDigit(text[start-1]) {
			continue
		}
		if end < len(text) && (isDigit(text[end]) || text[end] == '@') {
			continue
		}
		digits := text[start:end]
		if phoneShaped(digits, l.rules.Phone.CountryCode) {
			continue
		}
		span := l.rules.BankAccount.Window * maxTokenBytes
		before := lastTokens(leftSpan(text, start, span), l.rules.BankAccount.Window)
		after := firstTokens(rightSpan(text, end, span), l.rules.BankAccount.Window)

		accept := lastCue(before, l.rules.BankAccount.Cues)
		reject := lastCue(before, l.rules.BankAccount.RejectCues)
		if reject >= 0 && reject > accept {
			continue
		}
		if accept < 0 && lastCue(after, l.rules.BankAccount.Cues) < 0 {
			continue
		}
		if !seen[digits] {
			seen[digits] = true
			out = append(out, digits)
		}
	}
	return out
}

// PaymentHandles returns local@provider tokens that are not email addresses.
// The provider is any alphabetic token so invented handles are captured too.
func (l *Library) PaymentHandles(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, loc := range l.handleRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && text[start-1] == '@' {
			continue
		}
		if end < len(text) {
			next := rune(text[end])
			if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '@' {
				continue
			}
			// provider.tld or provider-name.tld means an email domain, not a handle
			if next == '-' || (next == '.' && end+1 < len(text) && isLetter(text[end+1])) {
				continue
			}
		}
		handle := strings.ToLower(text[start:end])
		local, provider, _ := strings.Cut(handle, "@")
		if l.excluded[provider] {
			continue
		}
		local = strings.Trim(local, ".-_")
		if len(local) < 2 {
			continue
		}
		handle = local + "@" + provider
		if !seen[handle] {
			seen[handle] = true
			out = append(out, handle)
		}
	}
	return out
}

// Emails returns email addresses, lowercased.
func (l *Library) Emails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range l.emailRe.FindAllString(text, -1) {
		m = strings.ToLower(strings.TrimRight(m, "."))
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Phones returns national subscriber numbers normalized to international form.
func (l *Library) Phones(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, loc := range l.phoneRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isDigit(text[start-1]) {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		n := l.NormalizePhone(text[start:end])
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// NormalizePhone converts a subscriber number with an optional country code
// or trunk prefix to +<cc><10 digits>. It returns "" for anything else.
func (l *Library) NormalizePhone(raw string) string {
	cc := l.rules.Phone.CountryCode
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if isDigit(raw[i]) {
			b.WriteByte(raw[i])
		}
	}
	d := b.String()
	switch {
	case len(d) == 10+len(cc) && strings.HasPrefix(d, cc):
		d = d[len(cc):]
	case len(d) == 11 && d[0] == '0':
		d = d[1:]
	}
	if len(d) != 10 || d[0] < '6' {
		return ""
	}
	return "+" + cc + d
}

// URLs returns links in the text with an advisory phishing classification.
func (l *Library) URLs(text string) []URL {
	var out []URL
	seen := make(map[string]bool)
	for _, loc := range l.urlRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && (text[start-1] == '@' || isLetter(text[start-1]) || isDigit(text[start-1])) {
			continue
		}
		if end < len(text) && (text[end] == '@' || text[end] == '-' || isLetter(text[end]) || isDigit(text[end])) {
			continue
		}
		raw := strings.TrimRight(text[start:end], ".,;:!?)]}'\"")
		if raw == "" {
			continue
		}
		norm := NormalizeURL(raw)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		u := URL{Raw: raw, Normalized: norm}
		u.Reasons = l.phishingReasons(norm)
		u.Phishing = len(u.Reasons) > 0
		out = append(out, u)
	}
	return out
}

// NormalizeURL lowercases a link and drops a trailing slash.
func NormalizeURL(raw string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
}

func (l *Library) phishingReasons(norm string) []string {
	host := norm
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")

	var reasons []string
	for _, s := range l.rules.URLs.Shorteners {
		s = strings.ToLower(s)
		if host == s || strings.HasSuffix(host, "."+s) || (!strings.Contains(s, ".") && strings.Contains(host, s)) {
			reasons = append(reasons, "shortener")
			break
		}
	}
	if ipv4Re.MatchString(host) {
		reasons = append(reasons, "ip_host")
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && l.suspTLD[host[i+1:]] {
		reasons = append(reasons, "suspicious_tld")
	}
	if containsAny(host, l.rules.URLs.BrandTokens) &&
		(strings.Contains(host, "-") || containsAny(norm, l.rules.URLs.LureTokens)) {
		reasons = append(reasons, "brand_lure")
	}
	return reasons
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if t != "" && strings.Contains(s, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// phoneShaped reports whether a digit run is really a mobile number.
func phoneShaped(d, cc string) bool {
	switch {
	case len(d) == 10:
		return d[0] >= '6'
	case len(d) == 10+len(cc) && strings.HasPrefix(d, cc):
		return d[len(cc)] >= '6'
	case len(d) == 11 && d[0] == '0':
		return d[1] >= '6'
	}
	return false
}

// maxTokenBytes bounds how far a cue window reaches per token, so each digit
// run inspects a fixed number of bytes around it.
const maxTokenBytes = 32

// leftSpan returns at most span bytes of text ending at i. A word cut by the
// bound is dropped so its tail cannot pass for a cue.
func leftSpan(text string, i, span int) string {
	from := i - span
	if from <= 0 {
		return text[:i]
	}
	s := text[from:i]
	if !isSpace(text[from-1]) {
		if j := strings.IndexAny(s, " \t\n\r"); j >= 0 {
			s = s[j:]
		} else {
			s = ""
		}
	}
	return s
}

// rightSpan is leftSpan mirrored: at most span bytes of text starting at i.
func rightSpan(text string, i, span int) string {
	to := i + span
	if to >= len(text) {
		return text[i:]
	}
	s := text[i:to]
	if !isSpace(text[to]) {
		if j := strings.LastIndexAny(s, " \t\n\r"); j >= 0 {
			s = s[:j]
		} else {
			s = ""
		}
	}
	return s
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func lastTokens(s string, n int) string {
	f := strings.Fields(strings.ToLower(s))
	if len(f) > n {
		f = f[len(f)-n:]
	}
	return strings.Join(f, " ")
}

func firstTokens(s string, n int) string {
	f := strings.Fields(strings.ToLower(s))
	if len(f) > n {
		f = f[:n]
	}
	return strings.Join(f, " ")
}

// lastCue returns the end offset of the right-most cue phrase in s, or -1.
// Cues must sit on letter boundaries so "acc" does not fire inside "accept".
func lastCue(s string, cues []string) int {
	best := -1
	for _, c := range cues {
		c = strings.ToLower(c)
		from := 0
		for {
			i := strings.Index(s[from:], c)
			if i < 0 {
				break
			}
			i += from
			j := i + len(c)
			if (i == 0 || !isLetter(s[i-1])) && (j == len(s) || !isLetter(s[j])) && j > best {
				best = j
			}
			from = i + 1
		}
	}
	return best
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
