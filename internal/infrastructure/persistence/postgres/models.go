package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"creative-canvas-api/internal/domain/entity"
)

// Models 需要迁移的表
func Models() []any {
	return []any{
		&sessionModel{},
		&messageModel{},
		&blockModel{},
		&connectionModel{},
		&creativeTargetModel{},
	}
}

type sessionModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	BoardID   string    `gorm:"type:varchar(64);not null;index:idx_chat_sessions_node"`
	BlockID   string    `gorm:"type:varchar(64);not null;index:idx_chat_sessions_node"`
	Title     string    `gorm:"type:varchar(255);not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (sessionModel) TableName() string { return "chat_sessions" }

func newSessionModel(s *entity.ChatSession) *sessionModel {
	return &sessionModel{
		ID:        s.ID,
		BoardID:   s.BoardID,
		BlockID:   s.BlockID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (m *sessionModel) toEntity() *entity.ChatSession {
	return &entity.ChatSession{
		ID:        m.ID,
		BoardID:   m.BoardID,
		BlockID:   m.BlockID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// creativeList 以 jsonb 保存消息附带的结构化创意
type creativeList []entity.AdCreative

func (c creativeList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *creativeList) Scan(src any) error {
	return scanJSON(src, c)
}

type variantList []entity.CreativeVariant

func (v variantList) Value() (driver.Value, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *variantList) Scan(src any) error {
	return scanJSON(src, v)
}

func scanJSON(src, dst any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

type messageModel struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	SessionID string         `gorm:"type:uuid;not null;index:idx_chat_messages_session_created,priority:1"`
	Role      string         `gorm:"type:varchar(16);not null"`
	Content   string         `gorm:"type:text;not null;default:''"`
	Images    pq.StringArray `gorm:"type:text[]"`
	Creatives creativeList   `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt time.Time      `gorm:"not null;index:idx_chat_messages_session_created,priority:2"`
}

func (messageModel) TableName() string { return "chat_messages" }

func newMessageModel(m *entity.ChatMessage) *messageModel {
	return &messageModel{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Images:    pq.StringArray(m.Images),
		Creatives: creativeList(m.Creatives),
		CreatedAt: m.CreatedAt,
	}
}

func (m *messageModel) toEntity() *entity.ChatMessage {
	msg := &entity.ChatMessage{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      entity.Role(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Images) > 0 {
		msg.Images = []string(m.Images)
	}
	if len(m.Creatives) > 0 {
		msg.Creatives = []entity.AdCreative(m.Creatives)
	}
	return msg
}

// blockModel 画布参考块（只读，由画布服务写入）
type blockModel struct {
	ID                string `gorm:"type:varchar(64);primaryKey"`
	BoardID           string `gorm:"type:varchar(64);not null;index"`
	Kind              string `gorm:"type:varchar(16);not null"`
	Title             string `gorm:"type:varchar(255)"`
	Content           string `gorm:"type:text"`
	URL               string `gorm:"type:text"`
	FilePath          string `gorm:"type:text"`
	InstructionPrompt string `gorm:"type:text"`
}

func (blockModel) TableName() string { return "canvas_blocks" }

func (m *blockModel) toEntity() (entity.ConnectedBlock, error) {
	return entity.NewConnectedBlock(entity.BlockFields{
		ID:                m.ID,
		Kind:              entity.BlockKind(m.Kind),
		Title:             m.Title,
		Content:           m.Content,
		URL:               m.URL,
		FilePath:          m.FilePath,
		InstructionPrompt: m.InstructionPrompt,
	})
}

// connectionModel 连线：source 块连到 target 节点，Position 为连接顺序
type connectionModel struct {
	BoardID  string `gorm:"type:varchar(64);primaryKey"`
	SourceID string `gorm:"type:varchar(64);primaryKey"`
	TargetID string `gorm:"type:varchar(64);primaryKey;index"`
	Position int    `gorm:"not null;default:0"`
}

func (connectionModel) TableName() string { return "canvas_connections" }

type creativeTargetModel struct {
	ID        string      `gorm:"type:varchar(64);primaryKey"`
	BoardID   string      `gorm:"type:varchar(64);not null;index"`
	Name      string      `gorm:"type:varchar(255)"`
	Variants  variantList `gorm:"type:jsonb;not null;default:'[]'"`
	UpdatedAt time.Time   `gorm:"not null"`
}

func (creativeTargetModel) TableName() string { return "creative_targets" }

func (m *creativeTargetModel) toEntity() *entity.CreativeTarget {
	variants := []entity.CreativeVariant(m.Variants)
	if variants == nil {
		variants = []entity.CreativeVariant{}
	}
	return &entity.CreativeTarget{
		ID:        m.ID,
		BoardID:   m.BoardID,
		Name:      m.Name,
		Variants:  variants,
		UpdatedAt: m.UpdatedAt,
	}
}
