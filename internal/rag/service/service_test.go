package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/models"
	"Hermes_RAG/internal/rag/pipeline"
	"Hermes_RAG/internal/rag/store"
	"Hermes_RAG/internal/rag/vectorstore"
	"Hermes_RAG/internal/templates"
	"Hermes_RAG/pkg/logger"
)

const testEmbeddingSize = 4

// testEmbedder returns constant non-zero vectors and can be told to fail
// from a given call onward.
type testEmbedder struct {
	calls     int
	failAfter int // fail calls numbered above this, 0 disables
}

func (e *testEmbedder) EmbedBatch(ctx context.Context, texts []string, kind embedding.InputKind) ([][]float32, error) {
	e.calls++
	if e.failAfter > 0 && e.calls > e.failAfter {
		return nil, errors.New("embedding backend unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0, 0}
	}
	return vectors, nil
}

func (e *testEmbedder) Size() int { return testEmbeddingSize }

type testGenerator struct {
	response string
}

func (g *testGenerator) GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *llm.GenerateOptions) (string, error) {
	return g.response, nil
}

func (g *testGenerator) ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: text}
}

func (g *testGenerator) ProcessText(text string) string { return strings.TrimSpace(text) }

func seedChunks(t *testing.T, chunks store.ChunkStore, projectID string, count int) {
	t.Helper()
	batch := make([]*models.DataChunk, count)
	for i := range batch {
		batch[i] = &models.DataChunk{Text: "chunk", Order: i}
	}
	if _, err := chunks.InsertChunks(context.Background(), projectID, batch); err != nil {
		t.Fatalf("InsertChunks() error = %v", err)
	}
}

func newTestService(chunks store.ChunkStore, vectors vectorstore.VectorDB, embedder *testEmbedder, pageSize int) *Service {
	log := logger.New("test", "")
	tmpl := templates.NewParser("en")
	gen := &testGenerator{response: "answer"}
	indexer := pipeline.NewIndexingPipeline(embedder, vectors, log)
	retriever := pipeline.NewRetriever(embedder, vectors, log)
	cm := pipeline.NewContextManager(gen, tmpl, log, 5, 10, 500)
	answers := pipeline.NewAnswerPipeline(retriever, gen, tmpl, cm, log, 5)
	return NewService(log, chunks, vectors, indexer, retriever, answers, nil, pageSize)
}

func TestPushProjectPaginates(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 5)
	vectors := vectorstore.NewMemoryStore()
	embedder := &testEmbedder{}
	svc := newTestService(chunks, vectors, embedder, 2)

	inserted, err := svc.PushProject(context.Background(), "p1", false)
	if err != nil {
		t.Fatalf("PushProject() error = %v", err)
	}
	if inserted != 5 {
		t.Errorf("Expected 5 inserted chunks, got %d", inserted)
	}
	// 5 chunks at page size 2 means 3 pages, one embed call each.
	if embedder.calls != 3 {
		t.Errorf("Expected 3 embedding calls, got %d", embedder.calls)
	}

	info, err := svc.CollectionInfo(context.Background(), "p1")
	if err != nil {
		t.Fatalf("CollectionInfo() error = %v", err)
	}
	if info.RowCount != 5 {
		t.Errorf("Expected 5 rows, got %d", info.RowCount)
	}
	if info.Name != "collection_p1" {
		t.Errorf("Expected collection name %q, got %q", "collection_p1", info.Name)
	}
}

func TestPushProjectRepushOverwritesSameIDs(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 5)
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(chunks, vectors, &testEmbedder{}, 2)

	for i := 0; i < 2; i++ {
		if _, err := svc.PushProject(context.Background(), "p1", false); err != nil {
			t.Fatalf("PushProject() run %d error = %v", i+1, err)
		}
	}

	info, _ := svc.CollectionInfo(context.Background(), "p1")
	if info.RowCount != 5 {
		t.Errorf("Expected re-push to overwrite the same ids, got %d rows", info.RowCount)
	}
}

func TestPushProjectResetKeepsAllPages(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 5)
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(chunks, vectors, &testEmbedder{}, 2)

	if _, err := svc.PushProject(context.Background(), "p1", false); err != nil {
		t.Fatalf("initial PushProject() error = %v", err)
	}
	// A reset push must rebuild once and then keep appending pages.
	inserted, err := svc.PushProject(context.Background(), "p1", true)
	if err != nil {
		t.Fatalf("reset PushProject() error = %v", err)
	}
	if inserted != 5 {
		t.Errorf("Expected 5 inserted chunks, got %d", inserted)
	}

	info, _ := svc.CollectionInfo(context.Background(), "p1")
	if info.RowCount != 5 {
		t.Errorf("Expected all pages present after reset push, got %d rows", info.RowCount)
	}
}

func TestPushProjectAbortsOnPageFailure(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 5)
	vectors := vectorstore.NewMemoryStore()
	// First page embeds fine, second page fails.
	svc := newTestService(chunks, vectors, &testEmbedder{failAfter: 1}, 2)

	inserted, err := svc.PushProject(context.Background(), "p1", false)
	if err == nil {
		t.Fatal("Expected page failure to abort the push")
	}
	if inserted != 2 {
		t.Errorf("Expected the completed first page to be reported, got %d", inserted)
	}
}

func TestPushTaggedResetScopedToTagKey(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 2)
	seedChunks(t, chunks, "p2", 3)
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(chunks, vectors, &testEmbedder{}, 10)
	ctx := context.Background()

	if _, err := svc.PushTagged(ctx, "p1", []string{"alpha"}, false); err != nil {
		t.Fatalf("PushTagged(p1) error = %v", err)
	}
	if _, err := svc.PushTagged(ctx, "p2", []string{"beta"}, false); err != nil {
		t.Fatalf("PushTagged(p2) error = %v", err)
	}

	// Record ids restart per push, so the beta push overwrote alpha ids 0-1.
	// Resetting alpha afterwards must leave beta untouched.
	if _, err := svc.PushTagged(ctx, "p1", []string{"alpha"}, true); err != nil {
		t.Fatalf("PushTagged(reset) error = %v", err)
	}

	results, err := svc.SearchTagged(ctx, "chunk", []string{"beta"}, 10)
	if err != nil {
		t.Fatalf("SearchTagged() error = %v", err)
	}
	if len(results) == 0 {
		t.Error("Expected beta records to survive an alpha reset")
	}
}

func TestResetCollection(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 2)
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(chunks, vectors, &testEmbedder{}, 10)
	ctx := context.Background()

	if _, err := svc.PushProject(ctx, "p1", false); err != nil {
		t.Fatalf("PushProject() error = %v", err)
	}

	deleted, err := svc.ResetCollection(ctx, "p1")
	if err != nil {
		t.Fatalf("ResetCollection() error = %v", err)
	}
	if !deleted {
		t.Error("Expected existing collection to report deleted")
	}

	deleted, err = svc.ResetCollection(ctx, "p1")
	if err != nil {
		t.Fatalf("second ResetCollection() error = %v", err)
	}
	if deleted {
		t.Error("Expected missing collection to report false")
	}
}

func TestAnswerDelegation(t *testing.T) {
	chunks := store.NewInMemoryChunkStore()
	seedChunks(t, chunks, "p1", 1)
	vectors := vectorstore.NewMemoryStore()
	svc := newTestService(chunks, vectors, &testEmbedder{}, 10)
	ctx := context.Background()

	if _, err := svc.PushProject(ctx, "p1", false); err != nil {
		t.Fatalf("PushProject() error = %v", err)
	}

	result, err := svc.Answer(ctx, "p1", "chunk", 1)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if result.Answer != "answer" {
		t.Errorf("Expected generated answer, got %q", result.Answer)
	}
}
