package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// IndexEvent 描述一次完成的索引写入，供下游消费者（如审计、缓存失效）使用。
type IndexEvent struct {
	ProjectID  string    `json:"project_id,omitempty"`
	Collection string    `json:"collection"`
	Tags       []string  `json:"tags,omitempty"`
	Inserted   int       `json:"inserted"`
	Reset      bool      `json:"reset"`
	OccurredAt time.Time `json:"occurred_at"`
}

// IndexEventPublisher 封装了向 Kafka 发布索引事件的逻辑。
// nil 接收者是合法的：未启用 Kafka 时所有发布调用直接返回。
type IndexEventPublisher struct {
	writer *kafka.Writer
}

// NewIndexEventPublisher 创建一个新的 IndexEventPublisher 实例。
func NewIndexEventPublisher(client *KafkaClient) *IndexEventPublisher {
	if client == nil {
		return nil
	}
	return &IndexEventPublisher{writer: client.Writer}
}

// Publish 将 IndexEvent 序列化为 JSON 并发送到 Kafka。
func (p *IndexEventPublisher) Publish(ctx context.Context, event *IndexEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal index event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Collection),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}
