package redis

import (
	"context"
	"encoding/json"
	"time"

	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/repository"
	"creative-canvas-api/pkg/logger"
)

// CachedChatRepository 为消息列表加 Read-Through 缓存，写操作后使缓存失效
type CachedChatRepository struct {
	repository.ChatRepository
	cache *Cache
	ttl   time.Duration
}

func NewCachedChatRepository(inner repository.ChatRepository, cache *Cache, ttl time.Duration) *CachedChatRepository {
	return &CachedChatRepository{ChatRepository: inner, cache: cache, ttl: ttl}
}

func (r *CachedChatRepository) ListMessages(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	var loadErr error
	raw, err := r.cache.GetOrLoadSafe(ctx, HistoryKey(sessionID), r.ttl, func() (any, error) {
		msgs, err := r.ChatRepository.ListMessages(ctx, sessionID)
		loadErr = err
		return msgs, err
	})
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		logger.Warn(ctx, "history cache unavailable, reading store", "error", err.Error())
		return r.ChatRepository.ListMessages(ctx, sessionID)
	}

	var msgs []*entity.ChatMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		logger.Warn(ctx, "drop corrupt history cache entry", "error", err.Error())
		r.invalidate(ctx, sessionID)
		return r.ChatRepository.ListMessages(ctx, sessionID)
	}
	if msgs == nil {
		msgs = []*entity.ChatMessage{}
	}
	return msgs, nil
}

func (r *CachedChatRepository) AppendMessage(ctx context.Context, msg *entity.ChatMessage) error {
	if err := r.ChatRepository.AppendMessage(ctx, msg); err != nil {
		return err
	}
	r.invalidate(ctx, msg.SessionID)
	return nil
}

func (r *CachedChatRepository) UpdateMessage(ctx context.Context, sessionID, id, content string) error {
	if err := r.ChatRepository.UpdateMessage(ctx, sessionID, id, content); err != nil {
		return err
	}
	r.invalidate(ctx, sessionID)
	return nil
}

func (r *CachedChatRepository) DeleteMessage(ctx context.Context, sessionID, id string) error {
	if err := r.ChatRepository.DeleteMessage(ctx, sessionID, id); err != nil {
		return err
	}
	r.invalidate(ctx, sessionID)
	return nil
}

func (r *CachedChatRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.ChatRepository.DeleteSession(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedChatRepository) invalidate(ctx context.Context, sessionID string) {
	if err := r.cache.InvalidateHistory(ctx, sessionID); err != nil {
		logger.Warn(ctx, "failed to invalidate history cache",
			"session_id", sessionID,
			"error", err.Error(),
		)
	}
}
