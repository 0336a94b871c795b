// Package memory 提供进程内存储实现，用于本地开发与测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"creative-canvas-api/internal/domain/entity"
)

// ChatStore 内存版会话/消息存储，不持久化
type ChatStore struct {
	mu       sync.RWMutex
	sessions map[string]*entity.ChatSession
	messages map[string][]*entity.ChatMessage
	now      func() time.Time
	last     time.Time
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		sessions: make(map[string]*entity.ChatSession),
		messages: make(map[string][]*entity.ChatMessage),
		now:      time.Now,
	}
}

// tick 返回严格递增的时间戳，保证同一毫秒内写入的消息顺序稳定
func (s *ChatStore) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *ChatStore) CreateSession(ctx context.Context, session *entity.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createLocked(session)
	return nil
}

func (s *ChatStore) createLocked(session *entity.ChatSession) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := s.tick()
	session.CreatedAt = now
	session.UpdatedAt = now
	cp := *session
	s.sessions[session.ID] = &cp
}

func (s *ChatStore) GetSession(ctx context.Context, id string) (*entity.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *ChatStore) ListSessions(ctx context.Context, boardID, blockID string) ([]*entity.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.ChatSession, 0)
	for _, sess := range s.sessions {
		if sess.BoardID == boardID && sess.BlockID == blockID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ChatStore) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, id)
	delete(s.sessions, id)
	return nil
}

// BranchSession 在同一把锁内完成建会话与复制消息
func (s *ChatStore) BranchSession(ctx context.Context, session *entity.ChatSession, messages []*entity.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createLocked(session)
	copied := make([]*entity.ChatMessage, 0, len(messages))
	for _, m := range messages {
		cp := m.Clone()
		cp.ID = uuid.NewString()
		cp.SessionID = session.ID
		cp.CreatedAt = s.tick()
		copied = append(copied, cp)
	}
	s.messages[session.ID] = copied
	return nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg *entity.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.CreatedAt = s.tick()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg.Clone())
	if sess, ok := s.sessions[msg.SessionID]; ok {
		sess.UpdatedAt = msg.CreatedAt
	}
	return nil
}

func (s *ChatStore) ListMessages(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.messages[sessionID]
	out := make([]*entity.ChatMessage, 0, len(src))
	for _, m := range src {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s *ChatStore) UpdateMessage(ctx context.Context, sessionID, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[sessionID] {
		if m.ID == id {
			m.Content = content
			return nil
		}
	}
	return nil
}

func (s *ChatStore) DeleteMessage(ctx context.Context, sessionID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[sessionID]
	for i, m := range list {
		if m.ID == id {
			s.messages[sessionID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *ChatStore) ListSessionImages(ctx context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, m := range s.messages[sessionID] {
		out = append(out, m.ReferencedImages()...)
	}
	return out, nil
}
