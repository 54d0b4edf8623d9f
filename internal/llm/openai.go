package llm

import (
	"context"
	"fmt"
	"strings"

	"Hermes_RAG/internal/config"
	"Hermes_RAG/internal/models"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI API 的文本生成客户端。
type OpenAI struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
	cfg    config.LLMConfig
}

// NewOpenAI 创建一个新的 OpenAI 客户端。
func NewOpenAI(model, apiKey string, cfg config.LLMConfig) (*OpenAI, error) {
	conf := openai.DefaultConfig(apiKey)
	client := openai.NewClientWithConfig(conf)
	return &OpenAI{client: client, model: model, cfg: cfg}, nil
}

// buildRequest 将提示词、消息历史与生成选项装配为一次 chat completion 请求。
// Temperature 在 API 中是可选参数，按指针传递。
func (o *OpenAI) buildRequest(prompt string, chatHistory []models.ChatMessage, opts *GenerateOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(chatHistory)+1)
	for _, msg := range chatHistory {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    string(models.SpeakerUser),
		Content: prompt,
	})

	maxTokens := o.cfg.MaxOutputTokens
	temperature := o.cfg.Temperature
	if opts != nil {
		maxTokens = opts.MaxOutputTokens
		temperature = opts.Temperature
	}

	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
}

// GenerateText 使用 OpenAI 的 chat completion 接口生成补全文本。
func (o *OpenAI) GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *GenerateOptions) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(prompt, chatHistory, opts))
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ConstructPrompt 将一段文本包装为指定角色的消息。
func (o *OpenAI) ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage {
	return models.ChatMessage{Role: role, Content: o.ProcessText(text)}
}

// ProcessText 去除首尾空白并按配置截断超长输入。
func (o *OpenAI) ProcessText(text string) string {
	return processText(text, o.cfg.MaxInputCharacters)
}
