// Package llm wraps the hosted completion API.
package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/heraklion-chatbot/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client generates one completion for the given conversation. Implementations
// make a single attempt and never retry.
type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Model string

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Model:         cfg.LLM.Model,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	if opts.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("llm setup: %w", config.ErrMissingAPIKey)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("llm model is not set")
	}
	return NewOpenAIClient(opts), nil
}
