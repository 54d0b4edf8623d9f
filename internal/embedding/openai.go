package embedding

import (
	"context"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIModel 是一个用于 OpenAI API 的 Embedding 模型客户端。
type OpenAIModel struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
	size   int            // 嵌入向量维度。
}

// NewOpenAIModel 创建一个新的 OpenAIModel 客户端。
func NewOpenAIModel(model, apiKey string, size int) (*OpenAIModel, error) {
	config := openai.DefaultConfig(apiKey)
	client := openai.NewClientWithConfig(config)
	return &OpenAIModel{client: client, model: model, size: size}, nil
}

// EmbedBatch 为一批文本生成嵌入向量。
// OpenAI 的嵌入端点同样不区分文档与查询表示，kind 在此被忽略。
func (m *OpenAIModel) EmbedBatch(ctx context.Context, texts []string, kind InputKind) ([][]float32, error) {
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get embeddings from openai: %w", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Size 返回嵌入向量的固定维度。
func (m *OpenAIModel) Size() int {
	return m.size
}
