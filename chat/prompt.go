package chat

import (
	"fmt"
	"os"
	"strings"
)

const (
	contextPlaceholder = "{context}"
	queryPlaceholder   = "{query}"
)

// RefusalPhrase is the answer the model is told to give when the context does
// not contain the answer.
const RefusalPhrase = "Λυπάμαι, δεν μπορώ να σε βοηθήσω με αυτό."

// DefaultPromptTemplate restricts the model to the retrieved context and to Greek.
const DefaultPromptTemplate = `You are a highly accurate assistant that answers questions solely based on the provided context about Heraklion. 
Do not use any external knowledge or make assumptions beyond the context. 
If the answer to the question is not found within the context, respond with "` + RefusalPhrase + `"
All responses must be in Greek.

Here is the context:
{context}

Question: {query}
Answer:`

// PromptTemplate is a text with one {context} and one {query} placeholder.
type PromptTemplate string

// ValidatePromptTemplate checks that both placeholders are present.
func ValidatePromptTemplate(tpl PromptTemplate) error {
	for _, placeholder := range []string{contextPlaceholder, queryPlaceholder} {
		if !strings.Contains(string(tpl), placeholder) {
			return fmt.Errorf("prompt template is missing %s", placeholder)
		}
	}
	return nil
}

// LoadPromptTemplate reads a template from path, or returns the built-in one
// when path is empty.
func LoadPromptTemplate(path string) (PromptTemplate, error) {
	if path == "" {
		return DefaultPromptTemplate, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}

	tpl := PromptTemplate(data)
	if err := ValidatePromptTemplate(tpl); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return tpl, nil
}

// Render substitutes both placeholders in a single pass, so placeholder text
// inside the context or question is left as is.
func (t PromptTemplate) Render(context, query string) string {
	return strings.NewReplacer(contextPlaceholder, context, queryPlaceholder, query).Replace(string(t))
}

// buildContext joins the retrieved chunks in rank order.
func buildContext(chunks []ChunkResult) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if text := strings.TrimSpace(chunk.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
