package pipeline

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
)

func newTestAnswerPipeline(store vectorstore.VectorDB, gen *fakeGenerator) *AnswerPipeline {
	log := logger.New("test", "")
	tmpl := templates.NewParser("en")
	retriever := NewRetriever(&fakeEmbedder{}, store, log)
	cm := NewContextManager(gen, tmpl, log, 5, 10, 500)
	return NewAnswerPipeline(retriever, gen, tmpl, cm, log, 5)
}

func TestAnswerBuildsNumberedPrompt(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCollection(t, store, "collection_p1",
		"Paris is the capital of France",
		"Bananas are yellow fruits",
	)
	gen := &fakeGenerator{responses: []string{"The capital of France is Paris."}}
	p := newTestAnswerPipeline(store, gen)

	result, err := p.Answer(context.Background(), "collection_p1", "what is the capital of France", 2)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if result.Answer != "The capital of France is Paris." {
		t.Errorf("Unexpected answer %q", result.Answer)
	}
	if !strings.Contains(result.FullPrompt, "## Document No: 1") {
		t.Errorf("Expected numbered fragments, got:\n%s", result.FullPrompt)
	}
	if !strings.Contains(result.FullPrompt, "Paris is the capital of France") {
		t.Errorf("Expected document text in prompt, got:\n%s", result.FullPrompt)
	}
	if !strings.Contains(result.FullPrompt, "what is the capital of France") {
		t.Errorf("Expected the question in the footer, got:\n%s", result.FullPrompt)
	}
	// Fragments joined by \n, footer attached with \n\n.
	if !strings.Contains(result.FullPrompt, "\n\nBased only on the above documents") {
		t.Errorf("Expected footer separated by a blank line, got:\n%s", result.FullPrompt)
	}

	if len(result.ChatHistory) != 1 || result.ChatHistory[0].Role != models.SpeakerSystem {
		t.Fatalf("Expected only the system message in history, got %v", result.ChatHistory)
	}
	if strings.Contains(result.FullPrompt, result.ChatHistory[0].Content) {
		t.Error("System instruction must not leak into the prompt body")
	}
}

func TestAnswerEmptyRetrievalIsEmptyResult(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	if err := store.CreateCollection(context.Background(), "collection_p1", testEmbeddingSize, false); err != nil {
		t.Fatalf("CreateCollection() error = %v", err)
	}
	gen := &fakeGenerator{responses: []string{"should not run"}}
	p := newTestAnswerPipeline(store, gen)

	result, err := p.Answer(context.Background(), "collection_p1", "anything", 5)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.Answer != "" || result.FullPrompt != "" || result.ChatHistory != nil {
		t.Errorf("Expected zero-value result, got %+v", result)
	}
	if gen.calls != 0 {
		t.Errorf("Expected no generation call, got %d", gen.calls)
	}
}

func TestAnswerFailedGenerationIsEmptyAnswer(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCollection(t, store, "collection_p1", "some content")
	gen := &fakeGenerator{err: context.DeadlineExceeded}
	p := newTestAnswerPipeline(store, gen)

	result, err := p.Answer(context.Background(), "collection_p1", "some content", 1)
	if err != nil {
		t.Fatalf("Expected generation failure to be absorbed, got error %v", err)
	}
	if result.Answer != "" {
		t.Errorf("Expected empty answer, got %q", result.Answer)
	}
	if result.FullPrompt == "" {
		t.Error("Expected the assembled prompt to be reported even without an answer")
	}
}

func TestAnswerWithHistoryFullFlow(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCollection(t, store, "collection_p1",
		"Paris is the capital of France",
	)
	gen := &fakeGenerator{responses: []string{
		"what is the capital of France", // rewrite
		"It is Paris.",                  // answer
		`["Paris", "France"]`,           // extraction
	}}
	p := newTestAnswerPipeline(store, gen)

	history := []models.ChatMessage{
		{Role: models.SpeakerUser, Content: "Tell me about France"},
		{Role: models.SpeakerAssistant, Content: "France is in Europe."},
	}
	result, err := p.AnswerWithHistory(context.Background(), "collection_p1", "what is its capital?", history, []string{"Europe"}, 1)
	if err != nil {
		t.Fatalf("AnswerWithHistory() error = %v", err)
	}

	if gen.calls != 3 {
		t.Fatalf("Expected rewrite, answer and extraction calls, got %d", gen.calls)
	}
	if result.RewrittenQuery != "what is the capital of France" {
		t.Errorf("Unexpected rewritten query %q", result.RewrittenQuery)
	}
	if result.Answer != "It is Paris." {
		t.Errorf("Unexpected answer %q", result.Answer)
	}
	// The footer carries the user's original phrasing, not the rewrite.
	if !strings.Contains(result.FullPrompt, "what is its capital?") {
		t.Errorf("Expected original query in footer, got:\n%s", result.FullPrompt)
	}
	want := []string{"Europe", "Paris", "France"}
	if !reflect.DeepEqual(result.SessionEntities, want) {
		t.Errorf("Expected entities %v, got %v", want, result.SessionEntities)
	}

	// The answer generation saw system message plus the prior turns.
	answerHistory := gen.histories[1]
	if len(answerHistory) != 3 {
		t.Fatalf("Expected 3 history messages for the answer call, got %d", len(answerHistory))
	}
	if answerHistory[0].Role != models.SpeakerSystem {
		t.Errorf("Expected leading system message, got %v", answerHistory[0])
	}
	if answerHistory[1].Role != models.SpeakerUser || answerHistory[2].Role != models.SpeakerAssistant {
		t.Errorf("Expected chronological user/assistant turns, got %v", answerHistory[1:])
	}
}

func TestAnswerWithHistoryRetrievesWithRewrittenQuery(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCollection(t, store, "collection_p1", "content")
	embedder := &fakeEmbedder{}
	log := logger.New("test", "")
	tmpl := templates.NewParser("en")
	gen := &fakeGenerator{responses: []string{"rewritten form", "answer", "[]"}}
	retriever := NewRetriever(embedder, store, log)
	cm := NewContextManager(gen, tmpl, log, 5, 10, 500)
	p := NewAnswerPipeline(retriever, gen, tmpl, cm, log, 5)

	history := []models.ChatMessage{{Role: models.SpeakerUser, Content: "earlier"}}
	if _, err := p.AnswerWithHistory(context.Background(), "collection_p1", "terse", history, nil, 1); err != nil {
		t.Fatalf("AnswerWithHistory() error = %v", err)
	}

	if len(embedder.lastQueries) != 1 || embedder.lastQueries[0] != "rewritten form" {
		t.Errorf("Expected retrieval to embed the rewritten query, got %v", embedder.lastQueries)
	}
}

func TestAnswerWithHistoryEmptyAnswerSkipsExtraction(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	seedCollection(t, store, "collection_p1", "content")
	gen := &fakeGenerator{responses: []string{"rewritten", ""}}
	p := newTestAnswerPipeline(store, gen)

	history := []models.ChatMessage{{Role: models.SpeakerUser, Content: "earlier"}}
	entities := []string{"kept"}
	result, err := p.AnswerWithHistory(context.Background(), "collection_p1", "content", history, entities, 1)
	if err != nil {
		t.Fatalf("AnswerWithHistory() error = %v", err)
	}

	if gen.calls != 2 {
		t.Errorf("Expected extraction to be skipped, got %d calls", gen.calls)
	}
	if !reflect.DeepEqual(result.SessionEntities, entities) {
		t.Errorf("Expected entities unchanged, got %v", result.SessionEntities)
	}
}

func TestAnswerWithTagsAndHistoryEmptyRetrieval(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	p := NewIndexingPipeline(&fakeEmbedder{}, store, logger.New("test", ""))
	if err := p.IndexWithTags(context.Background(), chunksOf("other"), idsUpTo(1), []string{"other"}, false); err != nil {
		t.Fatalf("IndexWithTags() error = %v", err)
	}
	gen := &fakeGenerator{responses: []string{"rewritten"}}
	ap := newTestAnswerPipeline(store, gen)

	history := []models.ChatMessage{{Role: models.SpeakerUser, Content: "earlier"}}
	result, err := ap.AnswerWithTagsAndHistory(context.Background(), "query", []string{"nomatch"}, history, []string{"e"}, 5)
	if err != nil {
		t.Fatalf("AnswerWithTagsAndHistory() error = %v", err)
	}
	if result.Answer != "" {
		t.Errorf("Expected empty answer, got %q", result.Answer)
	}
	if result.RewrittenQuery != "rewritten" {
		t.Errorf("Expected the rewrite to still be reported, got %q", result.RewrittenQuery)
	}
	if !reflect.DeepEqual(result.SessionEntities, []string{"e"}) {
		t.Errorf("Expected entities carried through, got %v", result.SessionEntities)
	}
}
