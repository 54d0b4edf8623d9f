package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/schema"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
)

// AnswerPipeline runs the full retrieval-augmented answer flow: retrieve,
// assemble a grounded prompt, generate, and (for conversational calls)
// update the session context. Negative outcomes such as "nothing
// retrieved" or "no answer generated" produce zero-value results, not
// errors.
type AnswerPipeline struct {
	retriever      *Retriever
	generator      llm.Generator
	templates      *templates.Parser
	contextManager *ContextManager
	log            logger.Logger
	historyWindow  int
}

// NewAnswerPipeline creates a new AnswerPipeline.
func NewAnswerPipeline(retriever *Retriever, generator llm.Generator, tmpl *templates.Parser, cm *ContextManager, log logger.Logger, historyWindow int) *AnswerPipeline {
	return &AnswerPipeline{
		retriever:      retriever,
		generator:      generator,
		templates:      tmpl,
		contextManager: cm,
		log:            log,
		historyWindow:  historyWindow,
	}
}

// Answer runs a single-turn answer against a project collection.
func (p *AnswerPipeline) Answer(ctx context.Context, collection, query string, limit int) (*schema.AnswerResult, error) {
	documents, err := p.retriever.Search(ctx, collection, query, limit)
	if err != nil {
		return nil, err
	}
	if documents == nil {
		return &schema.AnswerResult{}, nil
	}
	result, err := p.generate(ctx, query, documents, nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AnswerWithTags runs a single-turn answer against the shared collection,
// restricted to the exact tag set.
func (p *AnswerPipeline) AnswerWithTags(ctx context.Context, query string, tags []string, limit int) (*schema.AnswerResult, error) {
	documents, err := p.retriever.SearchWithTags(ctx, query, tags, limit)
	if err != nil {
		return nil, err
	}
	if documents == nil {
		return &schema.AnswerResult{}, nil
	}
	result, err := p.generate(ctx, query, documents, nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AnswerWithHistory runs a conversational answer against a project
// collection: the query is rewritten from the session context, retrieval
// uses the rewritten form, prompt assembly keeps the original form, and
// the session entities are updated from the generated answer.
func (p *AnswerPipeline) AnswerWithHistory(ctx context.Context, collection, query string, chatHistory []models.ChatMessage, sessionEntities []string, limit int) (*schema.ChatAnswerResult, error) {
	rewritten := p.contextManager.RewriteQuery(ctx, query, chatHistory, sessionEntities)

	documents, err := p.retriever.Search(ctx, collection, rewritten, limit)
	if err != nil {
		return nil, err
	}
	return p.answerConversation(ctx, query, rewritten, documents, chatHistory, sessionEntities)
}

// AnswerWithTagsAndHistory is the conversational counterpart of
// AnswerWithTags.
func (p *AnswerPipeline) AnswerWithTagsAndHistory(ctx context.Context, query string, tags []string, chatHistory []models.ChatMessage, sessionEntities []string, limit int) (*schema.ChatAnswerResult, error) {
	rewritten := p.contextManager.RewriteQuery(ctx, query, chatHistory, sessionEntities)

	documents, err := p.retriever.SearchWithTags(ctx, rewritten, tags, limit)
	if err != nil {
		return nil, err
	}
	return p.answerConversation(ctx, query, rewritten, documents, chatHistory, sessionEntities)
}

func (p *AnswerPipeline) answerConversation(ctx context.Context, query, rewritten string, documents []*schema.RetrievedDocument, chatHistory []models.ChatMessage, sessionEntities []string) (*schema.ChatAnswerResult, error) {
	if documents == nil {
		return &schema.ChatAnswerResult{RewrittenQuery: rewritten, SessionEntities: sessionEntities}, nil
	}

	result, err := p.generate(ctx, query, documents, chatHistory)
	if err != nil {
		return nil, err
	}
	if result.Answer != "" {
		// Extraction sees the rewritten query so that entities reflect what
		// was actually asked once context is resolved.
		sessionEntities = p.contextManager.UpdateEntities(ctx, rewritten, result.Answer, sessionEntities)
	}
	return &schema.ChatAnswerResult{
		AnswerResult:    *result,
		RewrittenQuery:  rewritten,
		SessionEntities: sessionEntities,
	}, nil
}

// generate assembles the grounded prompt and runs a single generation
// call. chatHistory may be nil for single-turn answers.
func (p *AnswerPipeline) generate(ctx context.Context, query string, documents []*schema.RetrievedDocument, chatHistory []models.ChatMessage) (*schema.AnswerResult, error) {
	fullPrompt, history, err := p.buildPrompt(query, documents, chatHistory)
	if err != nil {
		return nil, err
	}

	answer, err := p.generator.GenerateText(ctx, fullPrompt, history, nil)
	if err != nil {
		p.log.Warn(fmt.Sprintf("Generation failed, returning empty answer: %v", err))
		answer = ""
	}

	return &schema.AnswerResult{
		Answer:      strings.TrimSpace(answer),
		FullPrompt:  fullPrompt,
		ChatHistory: history,
	}, nil
}

// buildPrompt turns the retrieved documents into numbered fragments,
// appends the footer carrying the user's question, and builds the
// role-tagged history: the system message first, then up to the most
// recent historyWindow prior turns in chronological order. The system
// message is carried only in the history, never in the prompt body.
func (p *AnswerPipeline) buildPrompt(query string, documents []*schema.RetrievedDocument, chatHistory []models.ChatMessage) (string, []models.ChatMessage, error) {
	systemPrompt, err := p.templates.Get("rag", "system_prompt", nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load system prompt: %w", err)
	}

	fragments := make([]string, len(documents))
	for i, doc := range documents {
		fragment, err := p.templates.Get("rag", "document_prompt", map[string]string{
			"doc_num":    strconv.Itoa(i + 1),
			"chunk_text": p.generator.ProcessText(doc.Text),
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to render document fragment: %w", err)
		}
		fragments[i] = fragment
	}

	footer, err := p.templates.Get("rag", "footer_prompt", map[string]string{
		"query": query,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to render footer: %w", err)
	}

	fullPrompt := strings.Join([]string{strings.Join(fragments, "\n"), footer}, "\n\n")

	history := []models.ChatMessage{
		p.generator.ConstructPrompt(systemPrompt, models.SpeakerSystem),
	}
	for _, msg := range lastMessages(chatHistory, p.historyWindow) {
		role := models.SpeakerUser
		if msg.Role == models.SpeakerAssistant {
			role = models.SpeakerAssistant
		}
		history = append(history, p.generator.ConstructPrompt(msg.Content, role))
	}
	return fullPrompt, history, nil
}
