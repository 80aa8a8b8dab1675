package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens with the tokenizer of one model.
type TokenCounter struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

// Load fetches the encoding if it is not loaded yet. tiktoken-go downloads
// the BPE ranks on first use, so callers load at startup to keep that off
// the request path.
func (c *TokenCounter) Load() error {
	c.once.Do(func() {
		c.enc, c.err = tiktoken.EncodingForModel(c.model)
	})
	if c.err != nil {
		return fmt.Errorf("load tokenizer for %s: %w", c.model, c.err)
	}
	return nil
}

func (c *TokenCounter) Count(text string) (int, error) {
	if err := c.Load(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}
