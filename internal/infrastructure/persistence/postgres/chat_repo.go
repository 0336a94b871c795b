package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"creative-canvas-api/internal/domain/entity"
)

// ChatRepository 会话与消息存储
type ChatRepository struct {
	client *Client
}

func NewChatRepository(client *Client) *ChatRepository {
	return &ChatRepository{client: client}
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.CreateSession")
	defer span.End()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if err := getDB(ctx, r.client.db).Create(newSessionModel(session)).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetSession(ctx context.Context, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.GetSession",
		trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	var m sessionModel
	if err := getDB(ctx, r.client.db).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return m.toEntity(), nil
}

func (r *ChatRepository) ListSessions(ctx context.Context, boardID, blockID string) ([]*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.ListSessions")
	defer span.End()

	var rows []sessionModel
	if err := getDB(ctx, r.client.db).
		Where("board_id = ? AND block_id = ?", boardID, blockID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	out := make([]*entity.ChatSession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

// DeleteSession 同一事务内删除消息与会话
func (r *ChatRepository) DeleteSession(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.DeleteSession",
		trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&messageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&sessionModel{}).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	return nil
}

// BranchSession 新会话与复制的消息在一个事务内写入
func (r *ChatRepository) BranchSession(ctx context.Context, session *entity.ChatSession, messages []*entity.ChatMessage) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.BranchSession",
		trace.WithAttributes(attribute.Int("message_count", len(messages))))
	defer span.End()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	// 复制的消息保持原相对顺序，时间戳逐条递增
	base := time.Now()
	rows := make([]*messageModel, 0, len(messages))
	for i, m := range messages {
		cp := m.Clone()
		cp.ID = uuid.NewString()
		cp.SessionID = session.ID
		cp.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		rows = append(rows, newMessageModel(cp))
	}

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newSessionModel(session)).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to branch chat session: %w", err)
	}
	return nil
}

func (r *ChatRepository) AppendMessage(ctx context.Context, msg *entity.ChatMessage) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.AppendMessage",
		trace.WithAttributes(attribute.String("session_id", msg.SessionID)))
	defer span.End()

	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()

	err := getDB(ctx, r.client.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newMessageModel(msg)).Error; err != nil {
			return err
		}
		return tx.Model(&sessionModel{}).
			Where("id = ?", msg.SessionID).
			Update("updated_at", msg.CreatedAt).Error
	})
	if err != nil {
		msg.ID = ""
		span.RecordError(err)
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListMessages(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.ListMessages",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	var rows []messageModel
	if err := getDB(ctx, r.client.db).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}

	out := make([]*entity.ChatMessage, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toEntity())
	}
	return out, nil
}

func (r *ChatRepository) UpdateMessage(ctx context.Context, sessionID, id, content string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.UpdateMessage")
	defer span.End()

	if err := getDB(ctx, r.client.db).Model(&messageModel{}).
		Where("session_id = ? AND id = ?", sessionID, id).
		Update("content", content).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chat message: %w", err)
	}
	return nil
}

func (r *ChatRepository) DeleteMessage(ctx context.Context, sessionID, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.DeleteMessage")
	defer span.End()

	if err := getDB(ctx, r.client.db).
		Where("session_id = ? AND id = ?", sessionID, id).
		Delete(&messageModel{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chat message: %w", err)
	}
	return nil
}

func (r *ChatRepository) ListSessionImages(ctx context.Context, sessionID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.ListSessionImages")
	defer span.End()

	var rows []messageModel
	if err := getDB(ctx, r.client.db).
		Select("id", "images", "creatives").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list session images: %w", err)
	}

	var urls []string
	for i := range rows {
		urls = append(urls, rows[i].toEntity().ReferencedImages()...)
	}
	return urls, nil
}
