package session

import (
	"strings"
	"unicode"
)

// OpenerWords is how many leading words identify a reply's opener.
const OpenerWords = 5

// Ledger records what the agent already said so replies do not repeat.
type Ledger struct {
	Openers []string `json:"openers"`
	Excuses []string `json:"excuses"`
}

// HasOpener reports whether a normalized opener was already used.
func (l Ledger) HasOpener(opener string) bool {
	if opener == "" {
		return false
	}
	for _, o := range l.Openers {
		if o == opener {
			return true
		}
	}
	return false
}

// HasExcuse reports whether an excuse category was already used.
func (l Ledger) HasExcuse(category string) bool {
	for _, e := range l.Excuses {
		if e == category {
			return true
		}
	}
	return false
}

func (l Ledger) record(opener, excuse string) Ledger {
	out := l.clone()
	if opener != "" && !l.HasOpener(opener) {
		out.Openers = append(out.Openers, opener)
	}
	if excuse != "" && !l.HasExcuse(excuse) {
		out.Excuses = append(out.Excuses, excuse)
	}
	return out
}

func (l Ledger) clone() Ledger {
	return Ledger{
		Openers: append([]string(nil), l.Openers...),
		Excuses: append([]string(nil), l.Excuses...),
	}
}

// Opener returns the first five words of text, lowercased and stripped of
// punctuation. Two replies with the same opener count as a repetition.
func Opener(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := make([]string, 0, OpenerWords)
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w == "" {
			continue
		}
		out = append(out, w)
		if len(out) == OpenerWords {
			break
		}
	}
	return strings.Join(out, " ")
}
