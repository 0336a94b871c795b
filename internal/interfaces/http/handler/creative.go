package handler

import (
	"github.com/gin-gonic/gin"

	"creative-canvas-api/internal/application/chat"
	"creative-canvas-api/internal/application/chat/sections"
	"creative-canvas-api/internal/application/creative"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/interfaces/http/dto"
	apperrors "creative-canvas-api/pkg/errors"
)

// CreativeHandler 将对话内容推送到下游创意节点
type CreativeHandler struct {
	registry *chat.Registry
	pusher   *creative.Pusher
}

func NewCreativeHandler(registry *chat.Registry, pusher *creative.Pusher) *CreativeHandler {
	return &CreativeHandler{registry: registry, pusher: pusher}
}

// Push 推送变体
// @Summary 推送创意
// @Tags Creative
// @Accept json
// @Produce json
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/push [post]
func (h *CreativeHandler) Push(c *gin.Context) {
	var uri dto.NodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "board_id and block_id are required")
		return
	}
	var req dto.PushCreativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "target_id is required")
		return
	}

	ctx := c.Request.Context()
	var (
		target *entity.CreativeTarget
		err    error
	)
	if len(req.Variants) > 0 {
		target, err = h.pusher.PushBatch(ctx, req.TargetID, req.Variants)
	} else {
		var msg *entity.ChatMessage
		if ctrl, ok := h.registry.Lookup(uri.BoardID, uri.BlockID); ok {
			msg = findMessage(ctrl.Snapshot().Messages, req.MessageID)
		}
		if msg == nil {
			dto.Fail(c, apperrors.ErrMessageNotFound)
			return
		}
		target, err = h.pushFromMessage(c, req, msg)
	}
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.PushCreativeResponse{TargetID: target.ID, Variants: target.Variants})
}

func (h *CreativeHandler) pushFromMessage(c *gin.Context, req dto.PushCreativeRequest, msg *entity.ChatMessage) (*entity.CreativeTarget, error) {
	ctx := c.Request.Context()
	if req.SectionID == "" && req.ItemID == "" {
		if len(msg.Creatives) > 0 {
			return h.pusher.PushCreatives(ctx, req.TargetID, msg.Creatives)
		}
		return h.pusher.PushMessage(ctx, req.TargetID, msg)
	}

	for _, sec := range sections.Parse(msg.Content) {
		if req.ItemID != "" {
			for _, item := range sec.Items {
				if item.ID == req.ItemID {
					return h.pusher.PushItem(ctx, req.TargetID, item)
				}
			}
			continue
		}
		if sec.ID == req.SectionID {
			return h.pusher.PushSection(ctx, req.TargetID, sec)
		}
	}
	return nil, apperrors.ErrInvalidParam.WithDetail("section or item not found in message")
}

func findMessage(msgs []*entity.ChatMessage, id string) *entity.ChatMessage {
	if id == "" {
		return nil
	}
	for _, m := range msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}
