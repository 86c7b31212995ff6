package patterns

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Family is a named group of weighted scam indicators.
type Family string

const (
	FamilyThreat     Family = "threat"
	FamilyPhishing   Family = "phishing"
	FamilyKYC        Family = "kyc"
	FamilyInvestment Family = "investment"
	FamilyLottery    Family = "lottery"
	FamilyUrgency    Family = "urgency"
	FamilyFinancial  Family = "financial"
)

// TypedFamilies lists the families that can name a scam type, highest
// priority first. Ties between contributions resolve in this order.
var TypedFamilies = []Family{FamilyThreat, FamilyPhishing, FamilyKYC, FamilyInvestment, FamilyLottery}

// Topic is a conversation subject the agent may ask about.
type Topic string

const (
	TopicOTP           Topic = "otp"
	TopicPaymentHandle Topic = "payment_handle"
	TopicBankAccount   Topic = "bank_account"
	TopicLink          Topic = "link"
	TopicPhone         Topic = "phone"
	TopicPayment       Topic = "payment"
	TopicThreat        Topic = "threat"
)

// Rules is the on-disk shape of the rule file.
type Rules struct {
	Phone struct {
		CountryCode string `yaml:"country_code"`
	} `yaml:"phone"`
	BankAccount struct {
		MinDigits  int      `yaml:"min_digits"`
		MaxDigits  int      `yaml:"max_digits"`
		Window     int      `yaml:"window"`
		Cues       []string `yaml:"cues"`
		RejectCues []string `yaml:"reject_cues"`
	} `yaml:"bank_account"`
	PaymentHandle struct {
		ExcludedProviders []string `yaml:"excluded_providers"`
	} `yaml:"payment_handle"`
	URLs struct {
		TLDs           []string `yaml:"tlds"`
		Shorteners     []string `yaml:"shorteners"`
		SuspiciousTLDs []string `yaml:"suspicious_tlds"`
		BrandTokens    []string `yaml:"brand_tokens"`
		LureTokens     []string `yaml:"lure_tokens"`
	} `yaml:"urls"`
	Families   []FamilyRule          `yaml:"families"`
	Signals    map[string]SignalRule `yaml:"signals"`
	Escalation struct {
		MinRequests int      `yaml:"min_requests"`
		Verbs       []string `yaml:"verbs"`
	} `yaml:"escalation"`
	Personas    map[Family]string `yaml:"personas"`
	Tactics     []TacticRule      `yaml:"tactics"`
	Topics      []TopicRule       `yaml:"topics"`
	Disclosures []DisclosureRule  `yaml:"disclosures"`
}

type FamilyRule struct {
	Name     Family             `yaml:"name"`
	Typed    bool               `yaml:"typed"`
	Cap      float64            `yaml:"cap"`
	Keywords map[string]float64 `yaml:"keywords"`
}

// SignalRule assigns a structural finding (a link, a handle) to a family.
type SignalRule struct {
	Family Family  `yaml:"family"`
	Weight float64 `yaml:"weight"`
}

type TacticRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Note    string `yaml:"note"`
}

type TopicRule struct {
	Name    Topic    `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Markers []string `yaml:"markers"`
}

// DisclosureRule captures something the counterparty says about itself, or
// with Demand set, something it asks for (amounts, deadlines).
type DisclosureRule struct {
	Type          string `yaml:"type"`
	Pattern       string `yaml:"pattern"`
	CaseSensitive bool   `yaml:"case_sensitive"`
	Demand        bool   `yaml:"demand"`
}

// Library holds the compiled matchers. It is immutable once built and safe
// for concurrent use.
type Library struct {
	rules Rules

	handleRe *regexp.Regexp
	emailRe  *regexp.Regexp
	phoneRe  *regexp.Regexp
	digitsRe *regexp.Regexp
	urlRe    *regexp.Regexp
	excluded map[string]bool
	families []compiledFamily
	tactics  []compiledTactic
	topics   []compiledTopic
	disclose []compiledDisclosure
	escalate *regexp.Regexp
	suspTLD  map[string]bool
}

type compiledFamily struct {
	FamilyRule
	re *regexp.Regexp
}

type compiledTactic struct {
	TacticRule
	re *regexp.Regexp
}

type compiledTopic struct {
	TopicRule
	re *regexp.Regexp
}

type compiledDisclosure struct {
	DisclosureRule
	re *regexp.Regexp
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the library built from the embedded rule file.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := Load(bytes.NewReader(defaultRules))
		if err != nil {
			panic(fmt.Sprintf("patterns: embedded rules invalid: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

// LoadFile builds a library from a YAML rule file on disk.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses YAML rules and compiles every matcher.
func Load(r io.Reader) (*Library, error) {
	var rules Rules
	if err := yaml.NewDecoder(r).Decode(&rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return compile(rules)
}

func compile(rules Rules) (*Library, error) {
	if rules.Phone.CountryCode == "" {
		rules.Phone.CountryCode = "91"
	}
	if rules.BankAccount.MinDigits <= 0 {
		rules.BankAccount.MinDigits = 8
	}
	if rules.BankAccount.MaxDigits == 0 {
		rules.BankAccount.MaxDigits = 18
	}
	if rules.BankAccount.MaxDigits < rules.BankAccount.MinDigits {
		return nil, fmt.Errorf("bank_account: max_digits %d below min_digits %d", rules.BankAccount.MaxDigits, rules.BankAccount.MinDigits)
	}
	if rules.BankAccount.Window <= 0 {
		rules.BankAccount.Window = 6
	}
	if len(rules.URLs.TLDs) == 0 {
		return nil, fmt.Errorf("urls: at least one tld is required")
	}

	lib := &Library{
		rules:    rules,
		handleRe: regexp.MustCompile(`[a-zA-Z0-9._\-]{2,256}@[a-zA-Z]{2,64}`),
		emailRe:  regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(?:\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}`),
		phoneRe:  regexp.MustCompile(`(?:\+?` + regexp.QuoteMeta(rules.Phone.CountryCode) + `[\s\-]?|0)?[6-9]\d{4}[\s\-]?\d{5}`),
		digitsRe: regexp.MustCompile(fmt.Sprintf(`\d{%d,%d}`, rules.BankAccount.MinDigits, rules.BankAccount.MaxDigits)),
		excluded: make(map[string]bool),
		suspTLD:  make(map[string]bool),
	}
	for _, p := range rules.PaymentHandle.ExcludedProviders {
		lib.excluded[strings.ToLower(p)] = true
	}
	for _, t := range rules.URLs.SuspiciousTLDs {
		lib.suspTLD[strings.ToLower(t)] = true
	}

	tlds := make([]string, 0, len(rules.URLs.TLDs))
	for _, t := range rules.URLs.TLDs {
		tlds = append(tlds, regexp.QuoteMeta(strings.ToLower(t)))
	}
	sort.Slice(tlds, func(i, j int) bool { return len(tlds[i]) > len(tlds[j]) })
	lib.urlRe = regexp.MustCompile(`(?i)https?://[^\s<>"'{}|\\^\[\]]+|www\.[^\s<>"'{}|\\^\[\]]+|[a-z0-9][a-z0-9\-]*(?:\.[a-z0-9\-]+)*\.(?:` +
		strings.Join(tlds, "|") + `)(?:/[^\s<>"'{}|\\^\[\]]*)?`)

	for _, fr := range rules.Families {
		if fr.Name == "" {
			return nil, fmt.Errorf("family without a name")
		}
		re, err := phraseRegexp(keys(fr.Keywords))
		if err != nil {
			return nil, fmt.Errorf("family %s: %w", fr.Name, err)
		}
		if fr.Cap <= 0 {
			fr.Cap = 1.0
		}
		lib.families = append(lib.families, compiledFamily{FamilyRule: fr, re: re})
	}

	for _, tr := range rules.Tactics {
		re, err := regexp.Compile(`(?i)` + tr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("tactic %s: %w", tr.Name, err)
		}
		lib.tactics = append(lib.tactics, compiledTactic{TacticRule: tr, re: re})
	}

	for _, tr := range rules.Topics {
		re, err := regexp.Compile(`(?i)` + tr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", tr.Name, err)
		}
		lib.topics = append(lib.topics, compiledTopic{TopicRule: tr, re: re})
	}

	for _, dr := range rules.Disclosures {
		expr := dr.Pattern
		if !dr.CaseSensitive {
			expr = `(?i)` + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("disclosure %s: %w", dr.Type, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("disclosure %s: pattern needs a capture group", dr.Type)
		}
		lib.disclose = append(lib.disclose, compiledDisclosure{DisclosureRule: dr, re: re})
	}

	if len(rules.Escalation.Verbs) > 0 {
		re, err := phraseRegexp(rules.Escalation.Verbs)
		if err != nil {
			return nil, fmt.Errorf("escalation: %w", err)
		}
		lib.escalate = re
	}

	return lib, nil
}

// phraseRegexp builds one case-insensitive alternation matching any phrase on
// word boundaries. Longer phrases come first so they win over their prefixes.
func phraseRegexp(phrases []string) (*regexp.Regexp, error) {
	if len(phrases) == 0 {
		return regexp.Compile(`$^`)
	}
	sorted := append([]string(nil), phrases...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	alts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		words := strings.Fields(strings.ToLower(p))
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Rules returns a copy of the rule set the library was built from.
func (l *Library) Rules() Rules {
	return l.rules
}

// Persona returns the persona name configured for a dominant family, or ""
// when none is configured.
func (l *Library) Persona(f Family) string {
	return l.rules.Personas[f]
}

// Signal returns the family and weight for a structural signal.
func (l *Library) Signal(name string) (SignalRule, bool) {
	s, ok := l.rules.Signals[name]
	return s, ok
}

// FamilyCap returns the configured contribution cap for a family.
func (l *Library) FamilyCap(f Family) float64 {
	for _, cf := range l.families {
		if cf.Name == f {
			return cf.Cap
		}
	}
	return 1.0
}

// TacticNote returns the human-readable description of a tactic.
func (l *Library) TacticNote(name string) string {
	for _, t := range l.tactics {
		if t.Name == name && t.Note != "" {
			return t.Note
		}
	}
	return name
}

// TopicMarkers returns the words a reply uses when it addresses a topic.
func (l *Library) TopicMarkers(t Topic) []string {
	for _, ct := range l.topics {
		if ct.Name == t {
			return ct.Markers
		}
	}
	return nil
}
