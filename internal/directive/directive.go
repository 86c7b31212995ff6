package directive

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// FactCaseNumber is the disclosure type for case and reference numbers.
const FactCaseNumber = "case_number"

// NeededFacts are the fact types the agent tries to collect, in order.
var NeededFacts = []string{
	extractor.CategoryPaymentHandle,
	extractor.CategoryBankAccount,
	extractor.CategoryPhone,
	extractor.CategoryLink,
	FactCaseNumber,
}

var factTopics = map[string]patterns.Topic{
	extractor.CategoryPaymentHandle: patterns.TopicPaymentHandle,
	extractor.CategoryBankAccount:   patterns.TopicBankAccount,
	extractor.CategoryPhone:         patterns.TopicPhone,
	extractor.CategoryLink:          patterns.TopicLink,
}

// Directive is the instruction set for one reply.
type Directive struct {
	SessionID        string
	Persona          string
	PersonaProfile   string
	Stage            session.Stage
	Tone             string
	Turn             int
	ScamType         string
	KnownFacts       []session.Fact
	MissingInfo      []string
	ForbiddenPhrases []string
	UsedOpeners      []string
	Rules            []string
	LatestTopics     []patterns.Topic
	Latest           string
	Excuse           *Excuse
	Bait             string
}

// Builder turns session state into directives and polices generated replies.
type Builder struct {
	t   *Templates
	lib *patterns.Library
}

func NewBuilder(t *Templates, lib *patterns.Library) *Builder {
	return &Builder{t: t, lib: lib}
}

// Build produces the directive for replying to latest. Known facts come from
// the session's fact view; a type with any known value is never missing.
func (b *Builder) Build(s *session.Session, latest string) Directive {
	view := s.FactView()
	turn := s.InboundCount()
	stage := s.Stage
	if stage == "" {
		stage = session.StageAnxious
	}

	recent := s.RecentAgentTopics(2)
	var missing, deferred []string
	for _, typ := range NeededFacts {
		if view.HasType(typ) {
			continue
		}
		if topic, ok := factTopics[typ]; ok && hasTopic(recent, topic) {
			deferred = append(deferred, typ)
			continue
		}
		missing = append(missing, typ)
	}
	fresh := len(missing)
	missing = append(missing, deferred...)

	st := b.t.Stages[stage]
	d := Directive{
		SessionID:        s.ID,
		Persona:          s.Persona,
		PersonaProfile:   b.t.persona(s.Persona),
		Stage:            stage,
		Tone:             st.Tone,
		Turn:             turn,
		ScamType:         s.ScamType,
		KnownFacts:       view.Values(),
		MissingInfo:      missing,
		ForbiddenPhrases: append(append([]string(nil), b.t.BannedPhrases...), b.t.RevealingPhrases...),
		UsedOpeners:      append([]string(nil), s.Ledger.Openers...),
		Rules:            append([]string(nil), st.Rules...),
		LatestTopics:     s.LatestTopics(),
		Latest:           latest,
	}
	if d.Persona == "" {
		d.Persona = session.PersonaDefault
	}

	d.Bait = b.bait(missing[:fresh], turn)
	if stage == session.StageConfused || stage == session.StageFrustrated {
		d.Excuse = b.excuse(s.Ledger, turn)
	}
	return d
}

func (b *Builder) bait(missing []string, turn int) string {
	for _, typ := range b.t.BaitPriority {
		if !contains(missing, typ) {
			continue
		}
		lines := b.t.Baits[typ]
		if len(lines) == 0 {
			continue
		}
		return lines[nonNegative(turn-1)%len(lines)]
	}
	return ""
}

func (b *Builder) excuse(l session.Ledger, turn int) *Excuse {
	n := len(b.t.Excuses)
	for k := 0; k < n; k++ {
		e := b.t.Excuses[(turn+k)%n]
		if !l.HasExcuse(e.Category) {
			return &e
		}
	}
	return nil
}

// Prompt renders the directive as a system prompt for the generator.
func (d Directive) Prompt() string {
	var sb strings.Builder

	sb.WriteString("You are chatting by text message with someone who contacted you first. Stay in character at all times.\n\n")
	fmt.Fprintf(&sb, "CHARACTER (%s): %s\n", d.Persona, d.PersonaProfile)
	fmt.Fprintf(&sb, "MOOD (%s): %s\n", d.Stage, d.Tone)

	if len(d.Rules) > 0 {
		sb.WriteString("\nRULES:\n")
		for _, r := range d.Rules {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}

	sb.WriteString("\nALREADY KNOWN (never ask for these again):\n")
	if len(d.KnownFacts) == 0 {
		sb.WriteString("- nothing yet\n")
	}
	for _, f := range d.KnownFacts {
		fmt.Fprintf(&sb, "- %s: %s\n", f.Type, f.Value)
	}

	if len(d.MissingInfo) > 0 {
		fmt.Fprintf(&sb, "\nSTILL NEEDED (ask for at most one, casually): %s\n", strings.Join(d.MissingInfo, ", "))
	}
	if d.Bait != "" {
		fmt.Fprintf(&sb, "A natural way to ask: %q\n", d.Bait)
	}
	if d.Excuse != nil {
		fmt.Fprintf(&sb, "You may stall with something like: %q\n", d.Excuse.Line)
	}
	if len(d.LatestTopics) > 0 {
		topics := make([]string, len(d.LatestTopics))
		for i, t := range d.LatestTopics {
			topics[i] = string(t)
		}
		fmt.Fprintf(&sb, "\nTheir last message was about: %s. Respond to that directly.\n", strings.Join(topics, ", "))
	}

	if len(d.UsedOpeners) > 0 {
		sb.WriteString("\nDo not start your reply with any of these openings:\n")
		for _, o := range d.UsedOpeners {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
	}
	if len(d.ForbiddenPhrases) > 0 {
		fmt.Fprintf(&sb, "\nNever use these phrases: %s\n", strings.Join(d.ForbiddenPhrases, "; "))
	}

	sb.WriteString("\nOUTPUT: one or two short sentences of plain text. No exclamation marks, no quotes, no stage directions. ")
	sb.WriteString("Never reveal that you suspect a scam.\n")
	return sb.String()
}

func hasTopic(list []patterns.Topic, t patterns.Topic) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
