package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/pkg/logger"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestBackoff_Calculate(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(10))
}

func TestProducer_PublishCarriesRequestID(t *testing.T) {
	rdb := newTestRedis(t)
	p := NewProducer(rdb, 10)

	ctx := logger.WithContext(context.Background(), logger.RequestIDKey, "req-1")
	id, err := p.PublishBlobCleanup(ctx, &BlobCleanupMessage{SessionID: "s1", URLs: []string{"u"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := rdb.XRange(context.Background(), string(StreamBlobCleanup), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data := entries[0].Values["data"].(string)
	assert.Contains(t, data, `"request_id":"req-1"`)
	assert.Contains(t, data, `"type":"blob_cleanup"`)
}

func TestConsumer_DeliversAndAcks(t *testing.T) {
	rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewConsumer(rdb, ConsumerConfig{
		Stream:       StreamBlobCleanup,
		Group:        ConsumerGroupBlobJanitor,
		ConsumerName: "test-worker",
		BlockTimeout: 50 * time.Millisecond,
	})

	var (
		mu   sync.Mutex
		got  []BlobCleanupMessage
		seen []string
	)
	c.RegisterHandler(TypeBlobCleanup, func(ctx context.Context, msg *Message) error {
		var job BlobCleanupMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, job)
		seen = append(seen, msg.GetMetadata("session_id"))
		return nil
	})
	require.NoError(t, c.Start(ctx))
	defer c.Stop()
	assert.Error(t, c.Start(ctx))

	_, err := NewProducer(rdb, 0).PublishBlobCleanup(ctx, &BlobCleanupMessage{SessionID: "s9", URLs: []string{"a", "b"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, got[0].URLs)
	assert.Equal(t, []string{"s9"}, seen)
	mu.Unlock()

	require.Eventually(t, func() bool {
		pending, err := rdb.XPending(context.Background(), string(StreamBlobCleanup), string(ConsumerGroupBlobJanitor)).Result()
		return err == nil && pending.Count == 0
	}, 2*time.Second, 10*time.Millisecond)
}
