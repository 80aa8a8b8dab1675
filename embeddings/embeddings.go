// Package embeddings maps text to vectors through an external provider.
package embeddings

import (
	"context"
	"fmt"

	"github.com/fabfab/heraklion-chatbot/config"
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Model     string
	Dimension int

	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	if opts.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("embedder setup: %w", config.ErrMissingAPIKey)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("embedding model is not set")
	}
	return NewOpenAIEmbedder(opts), nil
}
