package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	HTTPAddress string `yaml:"httpAddress"` // HTTP 监听地址 (例如: ":8080")
	// RateLimitPerSecond 为每秒允许的请求数，0 表示不限流。
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst     int     `yaml:"rateLimitBurst"` // 突发请求容量
}

// OllamaConfig 包含了 Ollama 服务的配置。
type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"` // Ollama 服务地址，空值时使用默认地址
	Model   string `yaml:"model"`   // 模型名称
}

// OpenAIConfig 包含了 OpenAI API 的配置。
type OpenAIConfig struct {
	APIKey string `yaml:"apiKey"` // OpenAI API 密钥
	Model  string `yaml:"model"`  // 模型名称
}

// LLMConfig 包含了不同生成模型提供商的配置。
type LLMConfig struct {
	Provider string       `yaml:"provider"` // 生成模型提供商 ("ollama" 或 "openai")
	Ollama   OllamaConfig `yaml:"ollama"`   // Ollama 配置
	OpenAI   OpenAIConfig `yaml:"openai"`   // OpenAI 配置
	// MaxInputCharacters 限制送入生成模型的单段文本长度，超出部分被截断。
	MaxInputCharacters int `yaml:"maxInputCharacters"`
	// MaxOutputTokens 是回答生成的默认输出长度上限。
	MaxOutputTokens int `yaml:"maxOutputTokens"`
	// Temperature 是回答生成的默认采样温度。
	Temperature float32 `yaml:"temperature"`
}

// EmbeddingConfig 包含了不同 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // Embedding 提供商 ("ollama" 或 "openai")
	Ollama   OllamaConfig `yaml:"ollama"`   // Ollama 配置
	OpenAI   OpenAIConfig `yaml:"openai"`   // OpenAI 配置
	Size     int          `yaml:"size"`     // 嵌入向量的固定维度
}

// RAGConfig 包含检索增强问答管线的可调参数。
type RAGConfig struct {
	VectorDBProvider string `yaml:"vectorDBProvider"` // 向量库提供商 ("milvus" 或 "memory")
	PageSize         int    `yaml:"pageSize"`         // 索引时每页读取的分块数量
	DefaultLimit     int    `yaml:"defaultLimit"`     // 检索结果数量的默认上限
	HistoryWindow    int    `yaml:"historyWindow"`    // 进入改写与生成上下文的历史消息数量
	MaxEntities      int    `yaml:"maxEntities"`      // 会话实体的容量上限
	// EntityAnswerMaxChars 限制送入实体抽取的回答长度（字符数）。
	EntityAnswerMaxChars int `yaml:"entityAnswerMaxChars"`
	SessionTTLSeconds    int `yaml:"sessionTTLSeconds"` // Redis 会话状态的有效期（秒）
	// QueryCacheSize 是查询向量缓存的容量，0 表示关闭缓存。
	QueryCacheSize       int `yaml:"queryCacheSize"`
	QueryCacheTTLSeconds int `yaml:"queryCacheTTLSeconds"` // 查询向量缓存的有效期（秒）
}

// MilvusConfig 定义了 Milvus 数据库的连接配置。
type MilvusConfig struct {
	Address string `yaml:"address"` // Milvus 服务地址
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`  // 是否启用 Redis 会话存储
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否启用索引事件发布
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 索引事件发布的主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`  // Milvus 数据库配置
	MongoDB MongoConfig  `yaml:"mongodb"` // MongoDB 数据库配置
	Redis   RedisConfig  `yaml:"redis"`   // Redis 数据库配置
	Kafka   KafkaConfig  `yaml:"kafka"`   // Kafka 消息队列配置
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App       AppInfo         `yaml:"app"`       // 应用程序信息
	Logger    LoggerConfig    `yaml:"logger"`    // 日志记录器配置
	Server    ServerConfig    `yaml:"server"`    // HTTP 服务配置
	LLM       LLMConfig       `yaml:"llm"`       // 生成模型配置
	Embedding EmbeddingConfig `yaml:"embedding"` // Embedding 配置
	RAG       RAGConfig       `yaml:"rag"`       // RAG 管线配置
	Databases DatabaseConfigs `yaml:"databases"` // 数据库配置
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 为缺省的可调参数填充默认值。
func (c *AppConfig) applyDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.LLM.MaxInputCharacters <= 0 {
		c.LLM.MaxInputCharacters = 1024
	}
	if c.LLM.MaxOutputTokens <= 0 {
		c.LLM.MaxOutputTokens = 1000
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = 0.1
	}
	if c.RAG.VectorDBProvider == "" {
		c.RAG.VectorDBProvider = "milvus"
	}
	if c.RAG.PageSize <= 0 {
		c.RAG.PageSize = 100
	}
	if c.RAG.DefaultLimit <= 0 {
		c.RAG.DefaultLimit = 5
	}
	if c.RAG.HistoryWindow <= 0 {
		c.RAG.HistoryWindow = 5
	}
	if c.RAG.MaxEntities <= 0 {
		c.RAG.MaxEntities = 10
	}
	if c.RAG.EntityAnswerMaxChars <= 0 {
		c.RAG.EntityAnswerMaxChars = 500
	}
	if c.RAG.SessionTTLSeconds <= 0 {
		c.RAG.SessionTTLSeconds = 3600
	}
	if c.Server.RateLimitPerSecond > 0 && c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.RAG.QueryCacheSize > 0 && c.RAG.QueryCacheTTLSeconds <= 0 {
		c.RAG.QueryCacheTTLSeconds = 300
	}
	if c.Databases.Kafka.Topic == "" {
		c.Databases.Kafka.Topic = "rag.index.events"
	}
}
