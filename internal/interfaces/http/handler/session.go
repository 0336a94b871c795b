package handler

import (
	"github.com/gin-gonic/gin"

	"creative-canvas-api/internal/interfaces/http/dto"
)

// ListSessions 节点会话列表
// @Summary 会话列表
// @Tags Sessions
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/sessions [get]
func (h *ChatHandler) ListSessions(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	sessions, err := ctrl.ListSessions(c.Request.Context())
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, sessions)
}

// NewSession 开始新会话
// @Summary 新会话
// @Tags Sessions
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/sessions [post]
func (h *ChatHandler) NewSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.NewSession(c.Request.Context()); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewSnapshotResponse(ctrl.Snapshot()))
}

// SwitchSession 切换到已有会话
// @Summary 切换会话
// @Tags Sessions
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/sessions/{sid}/activate [post]
func (h *ChatHandler) SwitchSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	snap, err := ctrl.SwitchSession(c.Request.Context(), dto.BindSessionID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewSnapshotResponse(*snap))
}

// DeleteSession 删除会话
// @Summary 删除会话
// @Tags Sessions
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/sessions/{sid} [delete]
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.DeleteSession(c.Request.Context(), dto.BindSessionID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
