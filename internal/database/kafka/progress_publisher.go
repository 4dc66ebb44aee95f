package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"ClimateIntel/internal/models"

	"github.com/segmentio/kafka-go"
)

// ProgressPublisher 封装了向 Kafka 发送流水线进度事件的逻辑。
// 它复用 KafkaClient 的共享 writer，主题在每条消息上指定，
// 因此它不拥有任何需要单独关闭的连接。
type ProgressPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewProgressPublisher 创建一个新的 ProgressPublisher 实例。
func NewProgressPublisher(client *KafkaClient, topic string) *ProgressPublisher {
	return &ProgressPublisher{writer: client.Writer, topic: topic}
}

// Publish 将 PipelineLogEntry 序列化为 JSON 并发送到 Kafka。
func (p *ProgressPublisher) Publish(ctx context.Context, entry *models.PipelineLogEntry) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal progress entry: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(entry.TaskID),
		Value: jsonData,
	})

	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}
