package pipeline

import (
	"context"
	"hash/fnv"
	"strings"

	"Hermes_RAG/internal/embedding"
	"Hermes_RAG/internal/llm"
	"Hermes_RAG/internal/models"
)

const testEmbeddingSize = 8

// fakeEmbedder produces deterministic bag-of-words vectors, so texts
// sharing words rank close under cosine similarity.
type fakeEmbedder struct {
	calls       int
	kinds       []embedding.InputKind
	empty       bool
	failAfter   int // fail calls after this many, 0 disables
	err         error
	lastQueries []string
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, kind embedding.InputKind) ([][]float32, error) {
	f.calls++
	f.kinds = append(f.kinds, kind)
	if kind == embedding.KindQuery {
		f.lastQueries = append(f.lastQueries, texts...)
	}
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, f.err
	}
	if f.empty {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = wordVector(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Size() int { return testEmbeddingSize }

func wordVector(text string) []float32 {
	v := make([]float32, testEmbeddingSize)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!")
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%testEmbeddingSize]++
	}
	return v
}

// fakeGenerator replays a scripted list of responses and records every
// call it receives.
type fakeGenerator struct {
	responses []string
	err       error

	calls     int
	prompts   []string
	histories [][]models.ChatMessage
	opts      []*llm.GenerateOptions
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *llm.GenerateOptions) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.histories = append(f.histories, chatHistory)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

func (f *fakeGenerator) ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: text}
}

func (f *fakeGenerator) ProcessText(text string) string {
	return strings.TrimSpace(text)
}
