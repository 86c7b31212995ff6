package directive

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Excuse is a stalling line with the words that show it was used.
type Excuse struct {
	Category string   `yaml:"category"`
	Markers  []string `yaml:"markers"`
	Line     string   `yaml:"line"`
}

type StageTemplate struct {
	Tone  string   `yaml:"tone"`
	Rules []string `yaml:"rules"`
}

// Templates is the immutable guardrail and fallback configuration.
type Templates struct {
	MaxSentences     int                                   `yaml:"max_sentences"`
	MaxChars         int                                   `yaml:"max_chars"`
	MinTokens        int                                   `yaml:"min_tokens"`
	BannedPhrases    []string                              `yaml:"banned_phrases"`
	RevealingPhrases []string                              `yaml:"revealing_phrases"`
	Personas         map[string]string                     `yaml:"personas"`
	Stages           map[session.Stage]StageTemplate       `yaml:"stages"`
	Excuses          []Excuse                              `yaml:"excuses"`
	BaitPriority     []string                              `yaml:"bait_priority"`
	Baits            map[string][]string                   `yaml:"baits"`
	Fallbacks        map[string]map[session.Stage][]string `yaml:"fallbacks"`
	LastResort       string                                `yaml:"last_resort"`

	bannedRe *regexp.Regexp
}

// DefaultTemplates parses the embedded template file.
func DefaultTemplates() (*Templates, error) {
	return LoadTemplates(bytes.NewReader(defaultTemplates))
}

// LoadTemplates parses and checks a template file.
func LoadTemplates(r io.Reader) (*Templates, error) {
	var t Templates
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if t.MaxSentences <= 0 {
		t.MaxSentences = 2
	}
	if t.MaxChars <= 0 {
		t.MaxChars = 220
	}
	if t.MinTokens <= 0 {
		t.MinTokens = 3
	}
	if t.LastResort == "" {
		return nil, fmt.Errorf("templates: last_resort is required")
	}
	if _, ok := t.Fallbacks[session.PersonaDefault]; !ok {
		return nil, fmt.Errorf("templates: fallbacks for persona %q are required", session.PersonaDefault)
	}

	phrases := append([]string(nil), t.BannedPhrases...)
	sort.Slice(phrases, func(i, j int) bool { return len(phrases[i]) > len(phrases[j]) })
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		alts = append(alts, regexp.QuoteMeta(strings.ToLower(p)))
	}
	if len(alts) > 0 {
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b[,.;:!]*`)
		if err != nil {
			return nil, fmt.Errorf("templates: banned phrases: %w", err)
		}
		t.bannedRe = re
	}
	return &t, nil
}

func (t *Templates) fallbackLines(persona string, stage session.Stage) []string {
	if byStage, ok := t.Fallbacks[persona]; ok && len(byStage[stage]) > 0 {
		return byStage[stage]
	}
	return t.Fallbacks[session.PersonaDefault][stage]
}

func (t *Templates) persona(name string) string {
	if p, ok := t.Personas[name]; ok {
		return p
	}
	return t.Personas[session.PersonaDefault]
}
