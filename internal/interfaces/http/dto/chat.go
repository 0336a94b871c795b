package dto

import (
	"creative-canvas-api/internal/application/chat"
	"creative-canvas-api/internal/application/chat/sections"
	"creative-canvas-api/internal/domain/entity"
)

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// RegenerateRequest 重新生成请求，Model 为空时使用当前模型
type RegenerateRequest struct {
	Model string `json:"model,omitempty"`
}

// EditMessageRequest 编辑消息请求
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// DeleteMessageRequest 按位置删除消息，ID 用于校验
type DeleteMessageRequest struct {
	Index int    `form:"index" json:"index"`
	ID    string `form:"id" json:"id,omitempty"`
}

// BranchRequest 分支请求
type BranchRequest struct {
	FromIndex *int `json:"from_index" binding:"required"`
}

// SetModelRequest 切换模型请求
type SetModelRequest struct {
	Model string `json:"model" binding:"required"`
}

// MessageResponse 消息及其解析后的段落
type MessageResponse struct {
	*entity.ChatMessage
	Sections []sections.Section `json:"sections,omitempty"`
}

// NewMessageResponse 助手消息附带段落解析结果
func NewMessageResponse(m *entity.ChatMessage) *MessageResponse {
	if m == nil {
		return nil
	}
	resp := &MessageResponse{ChatMessage: m}
	if m.Role == entity.RoleAssistant && m.Content != "" {
		resp.Sections = sections.Parse(m.Content)
	}
	return resp
}

// SnapshotResponse 节点状态
type SnapshotResponse struct {
	BoardID  string              `json:"board_id"`
	BlockID  string              `json:"block_id"`
	State    chat.State          `json:"state"`
	Model    string              `json:"model"`
	Session  *entity.ChatSession `json:"session,omitempty"`
	Messages []*MessageResponse  `json:"messages"`
}

func NewSnapshotResponse(s chat.Snapshot) *SnapshotResponse {
	msgs := make([]*MessageResponse, 0, len(s.Messages))
	for _, m := range s.Messages {
		msgs = append(msgs, NewMessageResponse(m))
	}
	return &SnapshotResponse{
		BoardID:  s.BoardID,
		BlockID:  s.BlockID,
		State:    s.State,
		Model:    s.Model,
		Session:  s.Session,
		Messages: msgs,
	}
}

// DeltaEvent 流式增量，Content 为累计全文
type DeltaEvent struct {
	Content string `json:"content"`
}

// DoneEvent 一次发送结束
type DoneEvent struct {
	Path        chat.Path           `json:"path"`
	Cancelled   bool                `json:"cancelled"`
	Session     *entity.ChatSession `json:"session,omitempty"`
	UserMessage *entity.ChatMessage `json:"user_message,omitempty"`
	Reply       *MessageResponse    `json:"reply,omitempty"`
}

func NewDoneEvent(r *chat.SendResult) *DoneEvent {
	return &DoneEvent{
		Path:        r.Path,
		Cancelled:   r.Cancelled,
		Session:     r.Session,
		UserMessage: r.UserMessage,
		Reply:       NewMessageResponse(r.Reply),
	}
}

// ErrorEvent 发送失败
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StopResponse 停止结果
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
