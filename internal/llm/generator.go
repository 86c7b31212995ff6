package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Generator phrases in-character replies. Its output is a candidate only.
type Generator struct {
	c      Completer
	recent int
	opts   Options
	logger *slog.Logger
}

func NewGenerator(c Completer, logger *slog.Logger) *Generator {
	return &Generator{
		c:      c,
		recent: 6,
		opts:   Options{MaxTokens: 140, Temperature: 0.9},
		logger: logger,
	}
}

// Generate sends the last few turns of history plus latest as the final
// user message.
func (g *Generator) Generate(ctx context.Context, system string, history []Message, latest string) (string, error) {
	if len(history) > g.recent {
		history = history[len(history)-g.recent:]
	}
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: RoleUser, Content: latest})

	out, err := g.c.Complete(ctx, system, alternate(msgs), g.opts)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	g.logger.Debug("reply generated", "chars", len(out))
	return strings.TrimSpace(out), nil
}

// alternate makes msgs start with a user turn and strictly alternate roles,
// joining consecutive messages from the same side.
func alternate(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != RoleAssistant {
			m.Role = RoleUser
		}
		if len(out) == 0 && m.Role == RoleAssistant {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}
