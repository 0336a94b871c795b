package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/infrastructure/persistence/memory"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb), mr
}

func TestClient_HealthCheck(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, c.HealthCheck(context.Background()))
}

func TestCache_GetOrLoadSafeLoadsOnce(t *testing.T) {
	c, _ := newTestClient(t)
	cache := NewCache(c)
	ctx := context.Background()

	var calls int32
	loader := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return []string{"a", "b"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := cache.GetOrLoadSafe(ctx, "k", time.Minute, loader)
			assert.NoError(t, err)
			assert.JSONEq(t, `["a","b"]`, string(raw))
		}()
	}
	wg.Wait()

	raw, err := cache.GetOrLoadSafe(ctx, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_InvalidateHistory(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewCache(c)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, HistoryKey("s1"), []int{1}, time.Minute))
	require.True(t, mr.Exists(HistoryKey("s1")))

	require.NoError(t, cache.InvalidateHistory(ctx, "s1"))
	assert.False(t, mr.Exists(HistoryKey("s1")))

	_, err := cache.Get(ctx, HistoryKey("s1"))
	assert.True(t, IsNil(err))
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	c, _ := newTestClient(t)
	limiter := NewRateLimiter(c)
	ctx := context.Background()

	now := time.UnixMilli(1_700_000_000_000)
	limiter.now = func() time.Time { return now }
	key := BuildRateLimitKey("ratelimit", "10.0.0.1", "/api/v1/chat")

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, key, 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := limiter.Allow(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	now = now.Add(1500 * time.Millisecond)
	ok, err = limiter.Allow(ctx, key, 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendGate_AcquireWithinTTL(t *testing.T) {
	c, mr := newTestClient(t)
	gate := NewSendGate(c)
	ctx := context.Background()

	ok, err := gate.Acquire(ctx, "b", "n", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.Acquire(ctx, "b", "n", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他节点不受影响
	ok, err = gate.Acquire(ctx, "b", "other", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Second)
	ok, err = gate.Acquire(ctx, "b", "n", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, gate.Release(ctx, "b", "n"))
	ok, err = gate.Acquire(ctx, "b", "n", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

type countingRepo struct {
	*memory.ChatStore
	lists int32
}

func (r *countingRepo) ListMessages(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	atomic.AddInt32(&r.lists, 1)
	return r.ChatStore.ListMessages(ctx, sessionID)
}

func TestCachedChatRepository_ReadThroughAndInvalidate(t *testing.T) {
	c, _ := newTestClient(t)
	inner := &countingRepo{ChatStore: memory.NewChatStore()}
	repo := NewCachedChatRepository(inner, NewCache(c), time.Minute)
	ctx := context.Background()

	sess := entity.NewChatSession("b", "n", "t")
	require.NoError(t, repo.CreateSession(ctx, sess))
	msg := entity.NewChatMessage(sess.ID, entity.RoleUser, "hello")
	require.NoError(t, repo.AppendMessage(ctx, msg))

	first, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "hello", second[0].Content)
	assert.Equal(t, msg.ID, second[0].ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.lists))

	require.NoError(t, repo.UpdateMessage(ctx, sess.ID, msg.ID, "edited"))
	third, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", third[0].Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.lists))

	require.NoError(t, repo.DeleteMessage(ctx, sess.ID, msg.ID))
	empty, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestCachedChatRepository_FallsBackWhenRedisDown(t *testing.T) {
	c, mr := newTestClient(t)
	inner := memory.NewChatStore()
	repo := NewCachedChatRepository(inner, NewCache(c), time.Minute)
	ctx := context.Background()

	sess := entity.NewChatSession("b", "n", "t")
	require.NoError(t, inner.CreateSession(ctx, sess))
	require.NoError(t, inner.AppendMessage(ctx, entity.NewChatMessage(sess.ID, entity.RoleUser, "hi")))

	mr.Close()
	msgs, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}
