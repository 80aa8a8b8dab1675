package chat_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fabfab/heraklion-chatbot/chat"
)

func TestRenderSubstitutesOnce(t *testing.T) {
	tpl := chat.PromptTemplate("Context: {context}\nQuestion: {query}")

	got := tpl.Render("mentions {query} literally", "what about {context}?")
	want := "Context: mentions {query} literally\nQuestion: what about {context}?"
	if got != want {
		t.Fatalf("unexpected render:\n%s", got)
	}
}

func TestDefaultTemplateIsValid(t *testing.T) {
	if err := chat.ValidatePromptTemplate(chat.DefaultPromptTemplate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(chat.DefaultPromptTemplate, chat.RefusalPhrase) {
		t.Fatal("default template must contain the refusal phrase")
	}
}

func TestValidatePromptTemplateRequiresPlaceholders(t *testing.T) {
	for _, tpl := range []chat.PromptTemplate{"", "only {context}", "only {query}"} {
		if err := chat.ValidatePromptTemplate(tpl); err == nil {
			t.Fatalf("expected error for %q", tpl)
		}
	}
}

func TestLoadPromptTemplate(t *testing.T) {
	tpl, err := chat.LoadPromptTemplate("")
	if err != nil || tpl != chat.DefaultPromptTemplate {
		t.Fatalf("expected default template, got %q, %v", tpl, err)
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	if err := os.WriteFile(good, []byte("{context} / {query}"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	tpl, err = chat.LoadPromptTemplate(good)
	if err != nil || tpl != "{context} / {query}" {
		t.Fatalf("unexpected template %q, %v", tpl, err)
	}

	bad := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(bad, []byte("no placeholders"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if _, err := chat.LoadPromptTemplate(bad); err == nil {
		t.Fatal("expected error for template without placeholders")
	}
}
