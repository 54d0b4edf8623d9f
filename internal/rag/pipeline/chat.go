package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
)

const (
	// Rewrites run at low temperature with a tight output bound to keep
	// them terse and stable.
	rewriteTemperature     = 0.3
	rewriteMaxOutputTokens = 500

	extractionTemperature     = 0.2
	extractionMaxOutputTokens = 200
)

// entityArrayPattern locates the first bracketed, array-looking substring
// in a generation response.
var entityArrayPattern = regexp.MustCompile(`(?s)\[.*?\]`)

// ContextManager maintains multi-turn conversational context. It is
// stateless: chat history and session entities are threaded through the
// parameters and the updated state is returned to the caller.
type ContextManager struct {
	generator      llm.Generator
	templates      *templates.Parser
	log            logger.Logger
	historyWindow  int
	maxEntities    int
	answerMaxChars int
}

// NewContextManager creates a new ContextManager. answerMaxChars bounds
// the part of the answer fed into entity extraction.
func NewContextManager(generator llm.Generator, tmpl *templates.Parser, log logger.Logger, historyWindow, maxEntities, answerMaxChars int) *ContextManager {
	return &ContextManager{
		generator:      generator,
		templates:      tmpl,
		log:            log,
		historyWindow:  historyWindow,
		maxEntities:    maxEntities,
		answerMaxChars: answerMaxChars,
	}
}

// RewriteQuery folds the recent chat history and session entities into a
// self-contained restatement of the current query. With an empty history
// the original query is returned verbatim and the generation backend is
// not called at all. A failed or empty rewrite also falls back to the
// original query; a rewrite failure never fails the overall request.
func (m *ContextManager) RewriteQuery(ctx context.Context, query string, chatHistory []models.ChatMessage, sessionEntities []string) string {
	if len(chatHistory) == 0 {
		return query
	}

	systemPrompt, err := m.templates.Get("chat", "query_rewrite_system", nil)
	if err != nil {
		m.log.Warn(fmt.Sprintf("Missing query rewrite system template: %v", err))
		return query
	}
	prompt, err := m.templates.Get("chat", "query_rewrite_prompt", map[string]string{
		"chat_history":     formatChatHistory(lastMessages(chatHistory, m.historyWindow)),
		"session_entities": formatEntities(sessionEntities),
		"query":            query,
	})
	if err != nil {
		m.log.Warn(fmt.Sprintf("Missing query rewrite template: %v", err))
		return query
	}

	history := []models.ChatMessage{
		m.generator.ConstructPrompt(systemPrompt, models.SpeakerSystem),
	}
	rewritten, err := m.generator.GenerateText(ctx, prompt, history, &llm.GenerateOptions{
		MaxOutputTokens: rewriteMaxOutputTokens,
		Temperature:     rewriteTemperature,
	})
	if err != nil {
		m.log.Warn(fmt.Sprintf("Query rewrite failed, using original query: %v", err))
		return query
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}
	return rewritten
}

// UpdateEntities extracts salient entities from the current turn and
// merges them into the existing session entities. With an empty answer
// there is nothing to extract and the existing entities are returned
// unchanged. Parse failures are absorbed the same way.
func (m *ContextManager) UpdateEntities(ctx context.Context, query, answer string, sessionEntities []string) []string {
	if answer == "" {
		return sessionEntities
	}
	if m.answerMaxChars > 0 && len(answer) > m.answerMaxChars {
		// Never split a multi-byte rune before prompt injection.
		cut := m.answerMaxChars
		for cut > 0 && !utf8.RuneStart(answer[cut]) {
			cut--
		}
		answer = answer[:cut]
	}

	systemPrompt, err := m.templates.Get("chat", "entity_extraction_system", nil)
	if err != nil {
		m.log.Warn(fmt.Sprintf("Missing entity extraction system template: %v", err))
		return sessionEntities
	}
	prompt, err := m.templates.Get("chat", "entity_extraction_prompt", map[string]string{
		"query":             query,
		"answer":            answer,
		"existing_entities": formatEntities(sessionEntities),
	})
	if err != nil {
		m.log.Warn(fmt.Sprintf("Missing entity extraction template: %v", err))
		return sessionEntities
	}

	history := []models.ChatMessage{
		m.generator.ConstructPrompt(systemPrompt, models.SpeakerSystem),
	}
	response, err := m.generator.GenerateText(ctx, prompt, history, &llm.GenerateOptions{
		MaxOutputTokens: extractionMaxOutputTokens,
		Temperature:     extractionTemperature,
	})
	if err != nil {
		m.log.Warn(fmt.Sprintf("Entity extraction failed, keeping existing entities: %v", err))
		return sessionEntities
	}

	match := entityArrayPattern.FindString(response)
	if match == "" {
		return sessionEntities
	}
	var extracted []string
	if err := json.Unmarshal([]byte(match), &extracted); err != nil {
		m.log.Warn(fmt.Sprintf("Failed to parse extracted entities, keeping existing ones: %v", err))
		return sessionEntities
	}

	return mergeEntities(sessionEntities, extracted, m.maxEntities)
}

// mergeEntities appends entities not already present (case-sensitive exact
// match), preserving insertion order of first encounter, then truncates to
// the most recent max entries by dropping from the front.
func mergeEntities(existing, extracted []string, max int) []string {
	merged := make([]string, len(existing))
	copy(merged, existing)

	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e] = struct{}{}
	}
	for _, e := range extracted {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		merged = append(merged, e)
	}

	if max > 0 && len(merged) > max {
		merged = merged[len(merged)-max:]
	}
	return merged
}

// lastMessages returns the most recent n messages of a history.
func lastMessages(history []models.ChatMessage, n int) []models.ChatMessage {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// formatChatHistory renders a history window as role-labelled lines.
func formatChatHistory(history []models.ChatMessage) string {
	lines := make([]string, len(history))
	for i, msg := range history {
		lines[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
	}
	return strings.Join(lines, "\n")
}

// formatEntities renders session entities for prompt injection.
func formatEntities(entities []string) string {
	if len(entities) == 0 {
		return "none"
	}
	return strings.Join(entities, ", ")
}
