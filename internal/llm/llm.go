package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"Hermes_RAG/internal/config"
	"Hermes_RAG/internal/models"
)

// GenerateOptions 控制单次生成调用的输出长度与采样温度。
// 为 nil 时使用客户端的默认值。
type GenerateOptions struct {
	MaxOutputTokens int
	Temperature     float32
}

// Generator 定义了所有文本生成客户端必须实现的通用接口。
type Generator interface {
	// GenerateText 基于给定的提示词与角色化消息历史生成一段补全文本。
	// 历史消息在前，提示词作为最后一条用户消息送入模型。
	// 后端未产生任何输出时返回空字符串而非错误。
	GenerateText(ctx context.Context, prompt string, chatHistory []models.ChatMessage, opts *GenerateOptions) (string, error)

	// ConstructPrompt 将一段文本包装为指定角色的消息。
	ConstructPrompt(text string, role models.SpeakerRole) models.ChatMessage

	// ProcessText 对送入模型的文本做规范化：去除首尾空白并截断超长输入。
	ProcessText(text string) string
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 Generator 接口的客户端。
func NewClient(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL, cfg)
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// processText 是各客户端共享的文本规范化实现。截断落在多字节字符
// 中间时回退到前一个字符边界。
func processText(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars > 0 && len(text) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = strings.TrimSpace(text[:cut])
	}
	return text
}
