// Package llm holds the language model clients used for reply phrasing and
// the optional second-opinion scam classifier. Nothing here is trusted for
// correctness: callers validate every output.
package llm

import (
	"context"
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune one completion call.
type Options struct {
	MaxTokens   int
	Temperature float64
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 256
	}
	return o.MaxTokens
}

// Completer is a chat-style model endpoint.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error)
}

// ProviderConfig selects and configures a Completer.
type ProviderConfig struct {
	Provider string // anthropic, groq, openai or none
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewCompleter builds the client for cfg.Provider. It returns (nil, nil) when
// the provider is "none" or empty, meaning replies use fallbacks only.
func NewCompleter(cfg ProviderConfig) (Completer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		c := NewAnthropicClient(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			c.SetBaseURL(cfg.BaseURL)
		}
		if cfg.Timeout > 0 {
			c.client.Timeout = cfg.Timeout
		}
		return c, nil
	case "groq", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s provider requires an API key", cfg.Provider)
		}
		base := cfg.BaseURL
		if base == "" && cfg.Provider == "openai" {
			base = OpenAIURL
		}
		model := cfg.Model
		if model == "" && cfg.Provider == "openai" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIClient(OpenAIConfig{APIKey: cfg.APIKey, Model: model, BaseURL: base, Timeout: cfg.Timeout}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
