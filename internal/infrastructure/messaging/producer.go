package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"creative-canvas-api/pkg/logger"
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

	// 透传请求与链路标识，便于 worker 侧日志关联
	for _, key := range []logger.ContextKey{logger.RequestIDKey, logger.TraceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" && msg.GetMetadata(string(key)) == "" {
			msg.SetMetadata(string(key), v)
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
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

// PublishBlobCleanup 发布图片清理任务
func (p *Producer) PublishBlobCleanup(ctx context.Context, job *BlobCleanupMessage) (string, error) {
	msg, err := NewMessage("", TypeBlobCleanup, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("session_id", job.SessionID)
	msg.SetMetadata("board_id", job.BoardID)
	msg.SetMetadata("block_id", job.BlockID)
	return p.Publish(ctx, StreamBlobCleanup, msg)
}
