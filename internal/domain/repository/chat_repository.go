// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"creative-canvas-api/internal/domain/entity"
)

// ChatSessionRepository 会话存储
type ChatSessionRepository interface {
	CreateSession(ctx context.Context, session *entity.ChatSession) error
	GetSession(ctx context.Context, id string) (*entity.ChatSession, error)
	// ListSessions 按创建时间倒序
	ListSessions(ctx context.Context, boardID, blockID string) ([]*entity.ChatSession, error)
	// DeleteSession 级联删除消息与会话记录
	DeleteSession(ctx context.Context, id string) error
	// BranchSession 单次原子调用：新建会话并复制消息
	BranchSession(ctx context.Context, session *entity.ChatSession, messages []*entity.ChatMessage) error
}

// ChatMessageRepository 消息存储
type ChatMessageRepository interface {
	// AppendMessage 写入后回填 ID 与 CreatedAt
	AppendMessage(ctx context.Context, msg *entity.ChatMessage) error
	// ListMessages 按创建时间升序
	ListMessages(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error)
	// UpdateMessage / DeleteMessage 限定在会话内，消息不存在时返回 nil
	UpdateMessage(ctx context.Context, sessionID, id, content string) error
	DeleteMessage(ctx context.Context, sessionID, id string) error
	// ListSessionImages 会话内消息元数据引用的图片 URL
	ListSessionImages(ctx context.Context, sessionID string) ([]string, error)
}

// ChatRepository 对话引擎使用的完整存储端口
type ChatRepository interface {
	ChatSessionRepository
	ChatMessageRepository
}
