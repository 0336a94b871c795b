// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SessionTitleMaxRunes 会话标题最大长度（按字符计）
const SessionTitleMaxRunes = 50

// ChatSession 画布节点上的一段对话
type ChatSession struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"board_id"`
	BlockID   string    `json:"block_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewChatSession(boardID, blockID, title string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		BoardID:   boardID,
		BlockID:   blockID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ChatMessage 对话消息
// Images 与 Creatives 可同时存在，也可都为空
type ChatMessage struct {
	ID        string       `json:"id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Images    []string     `json:"images,omitempty"`
	Creatives []AdCreative `json:"creatives,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func NewChatMessage(sessionID string, role Role, content string) *ChatMessage {
	return &ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Persisted 消息是否已写入存储
func (m *ChatMessage) Persisted() bool {
	return m != nil && m.ID != ""
}

// Clone 深拷贝，供快照与分支使用
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Images != nil {
		cp.Images = append([]string(nil), m.Images...)
	}
	if m.Creatives != nil {
		cp.Creatives = make([]AdCreative, len(m.Creatives))
		for i, c := range m.Creatives {
			cp.Creatives[i] = c.Clone()
		}
	}
	return &cp
}

// ReferencedImages 返回消息引用的全部图片 URL（含创意内嵌图片）
func (m *ChatMessage) ReferencedImages() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Images))
	out = append(out, m.Images...)
	for _, c := range m.Creatives {
		if c.ImageData != "" && !strings.HasPrefix(c.ImageData, "data:") {
			out = append(out, c.ImageData)
		}
	}
	return out
}

// SessionTitleFrom 由首条用户消息生成会话标题
func SessionTitleFrom(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if title == "" {
		return "New chat"
	}
	if utf8.RuneCountInString(title) <= SessionTitleMaxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:SessionTitleMaxRunes])) + "..."
}
