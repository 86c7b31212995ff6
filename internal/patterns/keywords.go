package patterns

import (
	"strings"
)

// KeywordHit is one weighted indicator phrase found in a message.
type KeywordHit struct {
	Family Family
	Phrase string
	Weight float64
}

// Disclosure is something the counterparty said about themselves or their
// demands: a claimed organisation, a name, an id, an amount, a deadline.
type Disclosure struct {
	Type   string
	Value  string
	Demand bool
}

// Keywords returns indicator hits grouped by family in rule order. Each phrase
// counts once per message no matter how often it repeats.
func (l *Library) Keywords(text string) []KeywordHit {
	var hits []KeywordHit
	for _, f := range l.families {
		seen := make(map[string]bool)
		for _, m := range f.re.FindAllString(text, -1) {
			phrase := strings.Join(strings.Fields(strings.ToLower(m)), " ")
			if seen[phrase] {
				continue
			}
			seen[phrase] = true
			hits = append(hits, KeywordHit{Family: f.Name, Phrase: phrase, Weight: f.Keywords[phrase]})
		}
	}
	return hits
}

// IsTyped reports whether a family can name a scam type.
func (l *Library) IsTyped(f Family) bool {
	for _, cf := range l.families {
		if cf.Name == f {
			return cf.Typed
		}
	}
	return false
}

// Tactics returns the manipulation tactics present in the text, in rule order.
func (l *Library) Tactics(text string) []string {
	var out []string
	for _, t := range l.tactics {
		if t.re.MatchString(text) {
			out = append(out, t.Name)
		}
	}
	return out
}

// Topics returns the conversation topics the text touches, in rule order.
func (l *Library) Topics(text string) []Topic {
	var out []Topic
	for _, t := range l.topics {
		if t.re.MatchString(text) {
			out = append(out, t.Name)
		}
	}
	return out
}

// Disclosures returns self-identification and demand details in the text.
func (l *Library) Disclosures(text string) []Disclosure {
	var out []Disclosure
	seen := make(map[string]bool)
	for _, d := range l.disclose {
		for _, m := range d.re.FindAllStringSubmatch(text, -1) {
			value := ""
			for _, g := range m[1:] {
				if g != "" {
					value = g
					break
				}
			}
			value = strings.Join(strings.Fields(value), " ")
			if !d.CaseSensitive {
				value = strings.ToLower(value)
			}
			value = strings.TrimRight(value, ".,;:")
			if value == "" {
				continue
			}
			key := d.Type + "\x00" + strings.ToLower(value)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Disclosure{Type: d.Type, Value: value, Demand: d.Demand})
		}
	}
	return out
}

// RequestCount returns how many messages ask the recipient to send, share or
// hand over something.
func (l *Library) RequestCount(messages []string) int {
	if l.escalate == nil {
		return 0
	}
	n := 0
	for _, m := range messages {
		if l.escalate.MatchString(m) {
			n++
		}
	}
	return n
}

// Escalating reports whether the history has enough repeated requests to
// earn the escalation signal.
func (l *Library) Escalating(history []string) bool {
	need := l.rules.Escalation.MinRequests
	if need <= 0 {
		return false
	}
	return l.RequestCount(history) >= need
}
