package directive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/llm"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// ErrGeneratorUnavailable marks a generator error, timeout or empty output.
var ErrGeneratorUnavailable = errors.New("generator unavailable")

// Generator produces candidate reply text. Its output is untrusted.
type Generator interface {
	Generate(ctx context.Context, system string, history []llm.Message, latest string) (string, error)
}

// Source says where a reply's text came from.
type Source string

const (
	SourceGenerated   Source = "generated"
	SourceRegenerated Source = "regenerated"
	SourceFallback    Source = "fallback"
)

// Reply is the final outgoing text for a turn.
type Reply struct {
	Text      string    `json:"text"`
	Opener    string    `json:"opener"`
	Excuse    string    `json:"excuse,omitempty"`
	Source    Source    `json:"source"`
	Violation Violation `json:"violation,omitempty"`
}

type Responder struct {
	b       *Builder
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewResponder wires a generator to the builder's guardrails. gen may be nil,
// in which case every reply is a fallback.
func NewResponder(b *Builder, gen Generator, timeout time.Duration, logger *slog.Logger) *Responder {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Responder{b: b, gen: gen, timeout: timeout, logger: logger}
}

// Reply produces the outgoing text for d. A repeated opener earns one
// regeneration; any other failure goes straight to the fallback. It never
// returns an empty reply.
func (r *Responder) Reply(ctx context.Context, d Directive, history []session.Turn) Reply {
	if r.gen == nil {
		return r.fallback(d, ViolationNone)
	}

	system := d.Prompt()
	msgs := toMessages(history)
	var last Violation

	for attempt := 0; attempt < 2; attempt++ {
		raw, err := r.generate(ctx, system, msgs, d.Latest)
		if err != nil {
			r.logger.Warn("generator failed, using fallback",
				"session_id", d.SessionID,
				"attempt", attempt+1,
				"error", err,
			)
			return r.fallback(d, last)
		}

		text, v := r.b.Validate(d, raw)
		if v == ViolationNone {
			src := SourceGenerated
			if attempt > 0 {
				src = SourceRegenerated
			}
			return Reply{
				Text:   text,
				Opener: session.Opener(text),
				Excuse: r.b.DetectExcuse(text),
				Source: src,
			}
		}

		last = v
		r.logger.Info("generated reply rejected",
			"session_id", d.SessionID,
			"attempt", attempt+1,
			"violation", string(v),
		)
		if v != ViolationRepeatedOpener {
			break
		}
		system = d.Prompt() + fmt.Sprintf("\nYour previous reply started with %q. Start with different words.\n", session.Opener(text))
	}
	return r.fallback(d, last)
}

func (r *Responder) generate(ctx context.Context, system string, msgs []llm.Message, latest string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.gen.Generate(ctx, system, msgs, latest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty output", ErrGeneratorUnavailable)
	}
	return raw, nil
}

func (r *Responder) fallback(d Directive, v Violation) Reply {
	text := r.b.Fallback(d)
	excuse := r.b.DetectExcuse(text)
	if d.Excuse != nil && strings.Contains(text, d.Excuse.Line) {
		excuse = d.Excuse.Category
	}
	return Reply{
		Text:      text,
		Opener:    session.Opener(text),
		Excuse:    excuse,
		Source:    SourceFallback,
		Violation: v,
	}
}

// Fallback returns a deterministic reply for the directive's persona and
// stage. It avoids openers already used whenever an unused line exists.
func (b *Builder) Fallback(d Directive) string {
	lines := b.t.fallbackLines(d.Persona, d.Stage)
	if len(lines) == 0 {
		return b.t.LastResort
	}

	compose := func(line string) string {
		switch {
		case d.Bait != "":
			return line + " " + d.Bait
		case d.Excuse != nil:
			return d.Excuse.Line + " " + line
		default:
			return line
		}
	}

	start := (nonNegative(d.Turn) + len(d.UsedOpeners)) % len(lines)
	for k := 0; k < len(lines); k++ {
		text := compose(lines[(start+k)%len(lines)])
		if !contains(d.UsedOpeners, session.Opener(text)) {
			return text
		}
	}
	if d.Excuse == nil && d.Bait != "" {
		// every line is spent; leading with the question still varies the opener
		text := d.Bait + " " + lines[start]
		if !contains(d.UsedOpeners, session.Opener(text)) {
			return text
		}
	}
	return compose(lines[start])
}

// DetectExcuse returns the category of the first excuse whose marker words
// appear in text, or "".
func (b *Builder) DetectExcuse(text string) string {
	lower := strings.ToLower(text)
	for _, e := range b.t.Excuses {
		for _, m := range e.Markers {
			if m != "" && containsWord(lower, strings.ToLower(m)) {
				return e.Category
			}
		}
	}
	return ""
}

func containsWord(s, w string) bool {
	from := 0
	for {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return false
		}
		i += from
		j := i + len(w)
		if (i == 0 || !isWordByte(s[i-1])) && (j == len(s) || !isWordByte(s[j])) {
			return true
		}
		from = i + 1
	}
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func toMessages(turns []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Sender == session.SenderAgent {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	return msgs
}
