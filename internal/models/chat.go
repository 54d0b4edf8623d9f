package models

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerSystem    SpeakerRole = "system"    // 系统角色。
	SpeakerUser      SpeakerRole = "user"      // 用户角色。
	SpeakerAssistant SpeakerRole = "assistant" // 助手角色。
)

// ChatMessage 表示一轮对话中的单条消息，顺序即对话顺序。
type ChatMessage struct {
	Role    SpeakerRole `json:"role"`
	Content string      `json:"content"`
}
