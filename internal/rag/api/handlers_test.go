package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/pipeline"
	"Hermes_RAG/internal/rag/service"
	"Hermes_RAG/internal/rag/session"
	"Hermes_RAG/internal/rag/store"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
	"Hermes_RAG/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(ctx context.Context, texts []string, kind embedding.InputKind) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func (stubEmbedder) Size() int { return 2 }

type queueGenerator struct {
	responses []string
}

func (g *queueGenerator) GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *llm.GenerateOptions) (string, error) {
	if len(g.responses) == 0 {
		return "", nil
	}
	response := g.responses[0]
	g.responses = g.responses[1:]
	return response, nil
}

func (g *queueGenerator) ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: text}
}

func (g *queueGenerator) ProcessText(text string) string { return strings.TrimSpace(text) }

func newTestServer(t *testing.T, gen *queueGenerator, limiter ratelimiter.RateLimiter) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test", "")
	tmpl := templates.NewParser("en")
	chunks := store.NewInMemoryChunkStore()
	if _, err := chunks.InsertChunks(context.Background(), "p1", []*models.DataChunk{
		{Text: "Paris is the capital of France", Order: 0},
	}); err != nil {
		t.Fatalf("InsertChunks() error = %v", err)
	}

	vectors := vectorstore.NewMemoryStore()
	embedder := stubEmbedder{}
	indexer := pipeline.NewIndexingPipeline(embedder, vectors, log)
	retriever := pipeline.NewRetriever(embedder, vectors, log)
	cm := pipeline.NewContextManager(gen, tmpl, log, 5, 10, 500)
	answers := pipeline.NewAnswerPipeline(retriever, gen, tmpl, cm, log, 5)
	svc := service.NewService(log, chunks, vectors, indexer, retriever, answers, nil, 100)

	handler := NewHandler(svc, session.NewInMemoryStore(), log, 5)
	srv := httptest.NewServer(SetupRouter(handler, limiter))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return resp.StatusCode, decoded
}

func TestPushAndSearchEndpoints(t *testing.T) {
	srv := newTestServer(t, &queueGenerator{}, nil)

	status, body := postJSON(t, srv.URL+"/api/v1/nlp/index/push/p1", map[string]interface{}{"do_reset": true})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from push, got %d (%v)", status, body)
	}
	if body["signal"] != SignalInsertSuccess {
		t.Errorf("Expected signal %q, got %v", SignalInsertSuccess, body["signal"])
	}
	if body["inserted_items_count"] != float64(1) {
		t.Errorf("Expected 1 inserted item, got %v", body["inserted_items_count"])
	}

	status, body = postJSON(t, srv.URL+"/api/v1/nlp/index/search/p1", map[string]interface{}{"text": "capital of France"})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from search, got %d (%v)", status, body)
	}
	if body["signal"] != SignalSearchSuccess {
		t.Errorf("Expected signal %q, got %v", SignalSearchSuccess, body["signal"])
	}
}

func TestSearchRequiresText(t *testing.T) {
	srv := newTestServer(t, &queueGenerator{}, nil)

	status, body := postJSON(t, srv.URL+"/api/v1/nlp/index/search/p1", map[string]interface{}{"limit": 3})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing text, got %d", status)
	}
	if body["signal"] != SignalSearchError {
		t.Errorf("Expected signal %q, got %v", SignalSearchError, body["signal"])
	}
}

func TestAnswerEndpointSignals(t *testing.T) {
	gen := &queueGenerator{responses: []string{"It is Paris."}}
	srv := newTestServer(t, gen, nil)

	if status, _ := postJSON(t, srv.URL+"/api/v1/nlp/index/push/p1", map[string]interface{}{}); status != http.StatusOK {
		t.Fatalf("push failed with status %d", status)
	}

	status, body := postJSON(t, srv.URL+"/api/v1/nlp/index/answer/p1", map[string]interface{}{"text": "capital?"})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from answer, got %d (%v)", status, body)
	}
	if body["signal"] != SignalAnswerSuccess {
		t.Errorf("Expected signal %q, got %v", SignalAnswerSuccess, body["signal"])
	}
	if body["answer"] != "It is Paris." {
		t.Errorf("Unexpected answer %v", body["answer"])
	}

	// The generator queue is now empty, so the next answer comes back blank.
	status, body = postJSON(t, srv.URL+"/api/v1/nlp/index/answer/p1", map[string]interface{}{"text": "again?"})
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty answer, got %d", status)
	}
	if body["signal"] != SignalAnswerError {
		t.Errorf("Expected signal %q, got %v", SignalAnswerError, body["signal"])
	}
}

func TestAnswerWithHistorySessionRoundTrip(t *testing.T) {
	gen := &queueGenerator{responses: []string{
		"It is Paris.",            // turn 1 answer (no rewrite: empty history)
		`["Paris"]`,               // turn 1 extraction
		"population of Paris",     // turn 2 rewrite
		"About two million.",      // turn 2 answer
		`["Paris", "population"]`, // turn 2 extraction
	}}
	srv := newTestServer(t, gen, nil)

	if status, _ := postJSON(t, srv.URL+"/api/v1/nlp/index/push/p1", map[string]interface{}{}); status != http.StatusOK {
		t.Fatal("push failed")
	}

	status, body := postJSON(t, srv.URL+"/api/v2/nlp/index/answer-with-history/p1", map[string]interface{}{"text": "capital of France?"})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from first turn, got %d (%v)", status, body)
	}
	if body["signal"] != SignalChatAnswerSuccess {
		t.Errorf("Expected signal %q, got %v", SignalChatAnswerSuccess, body["signal"])
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatal("Expected a session id on the first turn")
	}
	// No rewrite happened, so the rewritten query equals the input.
	if body["rewritten_query"] != "capital of France?" {
		t.Errorf("Expected original query on first turn, got %v", body["rewritten_query"])
	}

	status, body = postJSON(t, srv.URL+"/api/v2/nlp/index/answer-with-history/p1", map[string]interface{}{
		"text":       "and its population?",
		"session_id": sessionID,
	})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 from second turn, got %d (%v)", status, body)
	}
	if body["rewritten_query"] != "population of Paris" {
		t.Errorf("Expected history-driven rewrite on second turn, got %v", body["rewritten_query"])
	}
	entities, _ := body["session_entities"].([]interface{})
	if len(entities) != 2 {
		t.Errorf("Expected accumulated entities, got %v", entities)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimiter.NewTokenBucket(1, 2)
	srv := newTestServer(t, &queueGenerator{}, limiter)

	// The bucket starts full: the first 2 requests pass.
	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/nlp/index/info/p1")
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("Request %d unexpectedly rate limited", i+1)
		}
	}

	resp, err := http.Get(srv.URL + "/api/v1/nlp/index/info/p1")
	if err != nil {
		t.Fatalf("Request 3 failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on request 3, got %d", resp.StatusCode)
	}
}
