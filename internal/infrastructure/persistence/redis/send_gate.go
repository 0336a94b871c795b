package redis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SendGate 跨副本的发送冷却闸门
// 同一画布节点在 ttl 内只有一次 Acquire 成功
type SendGate struct {
	client *Client
}

func NewSendGate(client *Client) *SendGate {
	return &SendGate{client: client}
}

func sendGateKey(boardID, blockID string) string {
	return fmt.Sprintf("chat:gate:%s:%s", boardID, blockID)
}

// Acquire 使用 SET NX PX 抢占闸门
func (g *SendGate) Acquire(ctx context.Context, boardID, blockID string, ttl time.Duration) (bool, error) {
	key := sendGateKey(boardID, blockID)
	ctx, span := tracer.Start(ctx, "sendgate.Acquire",
		trace.WithAttributes(
			attribute.String("redis.key", key),
			attribute.Int64("redis.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	ok, err := g.client.rdb.SetNX(ctx, key, time.Now().UnixMilli(), ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to acquire send gate: %w", err)
	}
	span.SetAttributes(attribute.Bool("sendgate.acquired", ok))
	return ok, nil
}

// Release 提前释放闸门（发送在调用模型前失败时使用）
func (g *SendGate) Release(ctx context.Context, boardID, blockID string) error {
	return g.client.Del(ctx, sendGateKey(boardID, blockID))
}
