package dto

import "creative-canvas-api/internal/domain/entity"

// PushCreativeRequest 推送到下游创意节点
// 给出 Variants 时直接追加；否则从 MessageID 指定的消息转换，
// ItemID / SectionID 进一步缩小到单个条目或段落
type PushCreativeRequest struct {
	TargetID  string                   `json:"target_id" binding:"required"`
	MessageID string                   `json:"message_id,omitempty"`
	SectionID string                   `json:"section_id,omitempty"`
	ItemID    string                   `json:"item_id,omitempty"`
	Variants  []entity.CreativeVariant `json:"variants,omitempty"`
}

// PushCreativeResponse 推送后的目标状态
type PushCreativeResponse struct {
	TargetID string                   `json:"target_id"`
	Variants []entity.CreativeVariant `json:"variants"`
}
