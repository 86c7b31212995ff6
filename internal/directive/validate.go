package directive

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Violation names why a generated reply was rejected.
type Violation string

const (
	ViolationNone           Violation = ""
	ViolationEmpty          Violation = "empty"
	ViolationRevealing      Violation = "revealing"
	ViolationTooShort       Violation = "too_short"
	ViolationRepeatedOpener Violation = "repeated_opener"
	ViolationOffTopic       Violation = "off_topic"
)

var (
	labelRe   = regexp.MustCompile(`(?i)^\s*(?:reply|response|answer|victim|me|you)\s*:\s*`)
	dotsRe    = regexp.MustCompile(`\.{2,}`)
	spaceRe   = regexp.MustCompile(`\s+`)
	spacePunc = regexp.MustCompile(`\s+([,.;:?])`)
	dupPunc   = regexp.MustCompile(`([,;:])\s*[,;:.]+`)
)

// Validate sanitizes a generated reply and checks it against the directive.
// It returns the cleaned text and ViolationNone, or the violation that makes
// the reply unusable.
func (b *Builder) Validate(d Directive, raw string) (string, Violation) {
	text := clean(raw)
	if text == "" {
		return "", ViolationEmpty
	}

	lower := strings.ToLower(text)
	for _, p := range b.t.RevealingPhrases {
		if strings.Contains(lower, strings.ToLower(p)) {
			return text, ViolationRevealing
		}
	}

	if b.t.bannedRe != nil {
		text = b.t.bannedRe.ReplaceAllString(text, "")
		text = tidy(text)
	}

	text = strings.ReplaceAll(text, "!", ".")
	text = dotsRe.ReplaceAllString(text, ".")
	text = strings.ReplaceAll(text, "?.", "?")
	text = truncateSentences(text, b.t.MaxSentences)
	text = truncateChars(text, b.t.MaxChars)
	text = tidy(text)

	if len(strings.Fields(text)) < b.t.MinTokens {
		return text, ViolationTooShort
	}
	if opener := session.Opener(text); opener == "" || contains(d.UsedOpeners, opener) {
		return text, ViolationRepeatedOpener
	}
	if !b.relevant(d, text) {
		return text, ViolationOffTopic
	}
	return text, ViolationNone
}

// relevant reports whether text addresses at least one topic of the latest
// inbound turn. A turn without detected topics accepts anything.
func (b *Builder) relevant(d Directive, text string) bool {
	if len(d.LatestTopics) == 0 {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, t := range d.LatestTopics {
		for _, m := range b.lib.TopicMarkers(t) {
			m = strings.ToLower(m)
			if strings.Contains(m, " ") {
				if strings.Contains(strings.ToLower(text), m) {
					return true
				}
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(w, m) {
					return true
				}
			}
		}
	}
	return false
}

func clean(raw string) string {
	text := strings.TrimSpace(raw)
	text = labelRe.ReplaceAllString(text, "")
	text = strings.NewReplacer("*", "", "`", "", "#", "", "“", "\"", "”", "\"", "‘", "'", "’", "'").Replace(text)
	text = strings.TrimSpace(text)
	for len(text) >= 2 && (text[0] == '"' || text[0] == '\'') && text[len(text)-1] == text[0] {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	text = strings.Trim(text, "\"")
	return spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// tidy repairs the punctuation and spacing left behind by phrase removal.
func tidy(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	text = spacePunc.ReplaceAllString(text, "$1")
	text = dupPunc.ReplaceAllString(text, "$1")
	text = strings.TrimLeft(text, " ,.;:-")
	text = strings.TrimSpace(text)
	if r, size := utf8.DecodeRuneInString(text); size > 0 && unicode.IsLower(r) {
		text = string(unicode.ToUpper(r)) + text[size:]
	}
	return text
}

func truncateSentences(text string, max int) string {
	if max <= 0 {
		return text
	}
	count := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' {
			continue
		}
		count++
		if count == max {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return text
}

func truncateChars(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := strings.LastIndexByte(text[:max], ' ')
	if cut <= 0 {
		cut = max
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	text = strings.TrimRight(text[:cut], " ,;:-")
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}
