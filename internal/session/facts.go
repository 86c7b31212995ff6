package session

import "strings"

// FactView is a read-only view over a session's known facts. It is the one
// place the directive builder asks "do we already know this?".
type FactView struct {
	facts []Fact
}

// FactView returns the read-only view of the session's facts.
func (s *Session) FactView() FactView {
	return FactView{facts: s.Facts}
}

// Has reports whether the exact type+value pair is known.
func (v FactView) Has(typ, value string) bool {
	key := NormalizeFactValue(value)
	for _, f := range v.facts {
		if f.Type == typ && f.Value == key {
			return true
		}
	}
	return false
}

// HasType reports whether any fact of the type is known.
func (v FactView) HasType(typ string) bool {
	for _, f := range v.facts {
		if f.Type == typ {
			return true
		}
	}
	return false
}

// Values returns a copy of the facts in first-seen order.
func (v FactView) Values() []Fact {
	return append([]Fact(nil), v.facts...)
}

// Len returns the number of known facts.
func (v FactView) Len() int {
	return len(v.facts)
}

// NormalizeFactValue is the key used for fact uniqueness.
func NormalizeFactValue(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

func addFact(facts []Fact, typ, value string, turn int) []Fact {
	value = NormalizeFactValue(value)
	if typ == "" || value == "" {
		return facts
	}
	if (FactView{facts: facts}).Has(typ, value) {
		return facts
	}
	return append(facts, Fact{Type: typ, Value: value, Turn: turn})
}
