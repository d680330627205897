// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// GenerationCompletedMessage 生成完成事件载荷
type GenerationCompletedMessage struct {
	RequestID          string `json:"request_id"`
	ProjectID          string `json:"project_id"`
	DocumentID         string `json:"document_id,omitempty"`
	Operation          string `json:"operation_type"`
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	ActualInputTokens  int    `json:"actual_input_tokens"`
	ActualOutputTokens int    `json:"actual_output_tokens"`
	ActualCredits      int64  `json:"actual_credits"`
}

// GenerationFailedMessage 生成失败事件载荷
type GenerationFailedMessage struct {
	RequestID string `json:"request_id"`
	ProjectID string `json:"project_id"`
	Reason    string `json:"reason"`
}

// LowBalanceMessage 低余额告警载荷
type LowBalanceMessage struct {
	ProjectID string `json:"project_id"`
	Balance   int64  `json:"balance"`
}

// PublishGenerationCompleted 发布生成完成事件
func (p *Producer) PublishGenerationCompleted(ctx context.Context, record *entity.GenerationRecord) error {
	msg, err := NewMessage(record.ID, "generation.completed", record.ProjectID, &GenerationCompletedMessage{
		RequestID:          record.ID,
		ProjectID:          record.ProjectID,
		DocumentID:         record.DocumentID,
		Operation:          string(record.Operation),
		Provider:           record.Provider,
		Model:              record.Model,
		ActualInputTokens:  record.ActualInputTokens,
		ActualOutputTokens: record.ActualOutputTokens,
		ActualCredits:      record.ActualCredits,
	})
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, StreamGenerationEvents, msg)
	return err
}

// PublishGenerationFailed 发布生成失败事件
func (p *Producer) PublishGenerationFailed(ctx context.Context, requestID, projectID, reason string) error {
	msg, err := NewMessage(requestID, "generation.failed", projectID, &GenerationFailedMessage{
		RequestID: requestID,
		ProjectID: projectID,
		Reason:    reason,
	})
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, StreamGenerationEvents, msg)
	return err
}

// PublishLowBalance 发布低余额告警
func (p *Producer) PublishLowBalance(ctx context.Context, projectID string, balance int64) error {
	msg, err := NewMessage(projectID, "credits.low_balance", projectID, &LowBalanceMessage{
		ProjectID: projectID,
		Balance:   balance,
	})
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, StreamCreditAlerts, msg)
	return err
}
