package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Hermes_RAG/internal/config"
	"Hermes_RAG/internal/models"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于 Ollama API 的文本生成客户端。
type Ollama struct {
	client *olla.Client // Ollama 客户端实例。
	model  string       // 要使用的模型名称。
	cfg    config.LLMConfig
}

// NewOllama 创建一个新的 Ollama 客户端。
// baseURL 为空时默认为 "http://localhost:11434"。
func NewOllama(model, baseURL string, cfg config.LLMConfig) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	// 创建一个带有超时设置的 HTTP 客户端。
	hc := &http.Client{
		Timeout: 120 * time.Second,
	}

	client := olla.NewClient(parsedURL, hc)

	return &Ollama{client: client, model: model, cfg: cfg}, nil
}

// GenerateText 使用 Ollama 的 chat 接口生成补全文本。
func (o *Ollama) GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *GenerateOptions) (string, error) {
	messages := make([]olla.Message, 0, len(chatHistory)+1)
	for _, msg := range chatHistory {
		messages = append(messages, olla.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, olla.Message{
		Role:    string(models.SpeakerUser),
		Content: prompt,
	})

	maxTokens := o.cfg.MaxOutputTokens
	temperature := o.cfg.Temperature
	if opts != nil {
		maxTokens = opts.MaxOutputTokens
		temperature = opts.Temperature
	}

	var sb strings.Builder
	stream := false
	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": temperature,
			"num_predict": maxTokens,
		},
	}, func(resp olla.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate text with ollama: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// ConstructPrompt 将一段文本包装为指定角色的消息。
func (o *Ollama) ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: o.ProcessText(text)}
}

// ProcessText 去除首尾空白并按配置截断超长输入。
func (o *Ollama) ProcessText(text string) string {
	return processText(text, o.cfg.MaxInputCharacters)
}
