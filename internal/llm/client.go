// Package llm provides the LLM provider clients used by the agent to
// generate Go code from natural-language requests.
package llm

import (
	"context"
	"fmt"
	"strings"

	"tablepilot/internal/config"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Message is a single conversation turn replayed into a prompt.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// New constructs the client for the configured provider.
func New(cfg config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		c := NewAnthropicClient(cfg.AnthropicAPIKey)
		if cfg.Model != "" {
			c.SetModel(cfg.Model)
		}
		return c, nil
	case config.ProviderGemini:
		return NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}

// RenderHistory flattens prior turns into a prompt prefix. Providers whose
// APIs are single-turn (our usage of both is) receive history inline.
func RenderHistory(history []Message, current string) string {
	if len(history) == 0 {
		return current
	}
	var sb strings.Builder
	for _, m := range history {
		switch m.Role {
		case "user":
			sb.WriteString("User: ")
		case "assistant":
			sb.WriteString("Assistant: ")
		default:
			continue
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(current)
	return sb.String()
}
