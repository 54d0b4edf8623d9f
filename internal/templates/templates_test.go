package templates

import (
	"strings"
	"testing"
)

func TestGetSubstitutesPlaceholders(t *testing.T) {
	p := NewParser("en")

	got, err := p.Get("rag", "document_prompt", map[string]string{
		"doc_num":    "3",
		"chunk_text": "hello world",
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !strings.Contains(got, "## Document No: 3") {
		t.Errorf("Expected substituted doc number, got:\n%s", got)
	}
	if !strings.Contains(got, "hello world") {
		t.Errorf("Expected substituted chunk text, got:\n%s", got)
	}
	if strings.Contains(got, "$doc_num") || strings.Contains(got, "$chunk_text") {
		t.Errorf("Expected no leftover placeholders, got:\n%s", got)
	}
}

func TestGetWithoutSubstitutions(t *testing.T) {
	p := NewParser("en")

	got, err := p.Get("rag", "system_prompt", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == "" {
		t.Error("Expected non-empty system prompt")
	}
}

func TestUnknownLocaleFallsBack(t *testing.T) {
	p := NewParser("xx")

	if p.Locale() != DefaultLocale {
		t.Errorf("Expected fallback to %q, got %q", DefaultLocale, p.Locale())
	}
	if _, err := p.Get("rag", "footer_prompt", map[string]string{"query": "q"}); err != nil {
		t.Errorf("Expected fallback locale to serve templates, got error %v", err)
	}
}

func TestUnknownTemplateIsError(t *testing.T) {
	p := NewParser("en")

	if _, err := p.Get("rag", "missing", nil); err == nil {
		t.Error("Expected error for unknown template name")
	}
	if _, err := p.Get("missing", "system_prompt", nil); err == nil {
		t.Error("Expected error for unknown template group")
	}
}
