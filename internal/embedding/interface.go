package embedding

import (
	"context"
	"fmt"

	"Hermes_RAG/internal/config"
)

// InputKind 区分被嵌入文本的用途。许多嵌入后端会为文档和查询
// 生成不同的表示，索引与检索两侧绝不能混用。
type InputKind string

const (
	KindDocument InputKind = "document" // 索引时的文档嵌入。
	KindQuery    InputKind = "query"    // 检索时的查询嵌入。
)

// Embedder 定义了所有 embedding 模型需要实现的接口。
type Embedder interface {
	// EmbedBatch 为一批文本生成嵌入向量，整批只发起一次后端调用。
	EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error)

	// Size 返回该模型嵌入向量的固定维度，建库时使用。
	Size() int
}

// NewEmbedder 是一个工厂函数，根据配置创建并返回一个实现了 Embedder 接口的客户端。
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL, cfg.Size)
	case "openai":
		return NewOpenAIModel(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.Size)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
