package cleanup

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/infrastructure/messaging"
)

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
	prefix  string
}

func (f *fakeStore) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[url] {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeStore) Owns(url string) bool {
	return f.prefix == "" || strings.HasPrefix(url, f.prefix)
}

func TestJanitor_DeleteAllDedupesAndFilters(t *testing.T) {
	store := &fakeStore{prefix: "https://cdn/"}
	j := NewJanitor(store, 2)

	err := j.DeleteAll(context.Background(), []string{
		"https://cdn/a.png", "https://cdn/a.png", "", "https://elsewhere/b.png", "https://cdn/c.png",
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://cdn/a.png", "https://cdn/c.png"}, store.deleted)
}

func TestJanitor_DeleteAllContinuesAfterFailure(t *testing.T) {
	store := &fakeStore{fail: map[string]bool{"https://cdn/bad.png": true}}
	j := NewJanitor(store, 1)

	err := j.DeleteAll(context.Background(), []string{"https://cdn/bad.png", "https://cdn/ok.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.png")
	assert.Equal(t, []string{"https://cdn/ok.png"}, store.deleted)
}

func TestJanitor_HandleMessage(t *testing.T) {
	store := &fakeStore{}
	j := NewJanitor(store, 0)

	msg, err := messaging.NewMessage("", messaging.TypeBlobCleanup, &messaging.BlobCleanupMessage{
		SessionID: "s1",
		URLs:      []string{"https://cdn/x.png"},
	})
	require.NoError(t, err)
	require.NoError(t, j.HandleMessage(context.Background(), msg))
	assert.Equal(t, []string{"https://cdn/x.png"}, store.deleted)

	bad := &messaging.Message{ID: "m", Type: messaging.TypeBlobCleanup, Payload: []byte("not-json")}
	assert.NoError(t, j.HandleMessage(context.Background(), bad))
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishBlobCleanup(ctx context.Context, job *messaging.BlobCleanupMessage) (string, error) {
	p.calls++
	return "", errors.New("redis down")
}

func TestDispatcher_FallsBackToInlineDelete(t *testing.T) {
	store := &fakeStore{}
	pub := &failingPublisher{}
	d := NewDispatcher(pub, NewJanitor(store, 1))

	d.CleanupSessionImages(context.Background(), &entity.ChatSession{ID: "s1"}, []string{"https://cdn/a.png"})
	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, []string{"https://cdn/a.png"}, store.deleted)
}

func TestDispatcher_EnqueuesToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &fakeStore{}
	d := NewDispatcher(messaging.NewProducer(rdb, 100), NewJanitor(store, 1))
	sess := &entity.ChatSession{ID: "s1", BoardID: "b", BlockID: "n"}
	d.CleanupSessionImages(context.Background(), sess, []string{"https://cdn/a.png"})

	assert.Empty(t, store.deleted)
	entries, err := rdb.XRange(context.Background(), string(messaging.StreamBlobCleanup), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values["data"], `"session_id":"s1"`)
}
