// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"creative-canvas-api/internal/application/chat"
	"creative-canvas-api/internal/application/chat/stream"
	"creative-canvas-api/internal/interfaces/http/dto"
	apperrors "creative-canvas-api/pkg/errors"
)

// ChatHandler 画布节点对话接口
type ChatHandler struct {
	registry *chat.Registry
}

func NewChatHandler(registry *chat.Registry) *ChatHandler {
	return &ChatHandler{registry: registry}
}

func (h *ChatHandler) controller(c *gin.Context) (*chat.Controller, bool) {
	var uri dto.NodeURI
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "board_id and block_id are required")
		return nil, false
	}
	return h.registry.Get(uri.BoardID, uri.BlockID), true
}

// Snapshot 节点当前状态
// @Summary 获取节点对话状态
// @Tags Chat
// @Produce json
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat [get]
func (h *ChatHandler) Snapshot(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	dto.Success(c, dto.NewSnapshotResponse(ctrl.Snapshot()))
}

// Send 发送消息，以 SSE 返回增量与最终结果
// @Summary 发送消息
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.Fail(c, apperrors.ErrEmptyMessage)
		return
	}
	h.streamSend(c, func(ctx context.Context, onUpdate stream.UpdateFunc) (*chat.SendResult, error) {
		return ctrl.Send(ctx, req.Message, onUpdate)
	})
}

// Regenerate 重新生成最后一条回复
// @Summary 重新生成
// @Tags Chat
// @Accept json
// @Produce text/event-stream
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/regenerate [post]
func (h *ChatHandler) Regenerate(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body")
			return
		}
	}
	h.streamSend(c, func(ctx context.Context, onUpdate stream.UpdateFunc) (*chat.SendResult, error) {
		return ctrl.Regenerate(ctx, req.Model, onUpdate)
	})
}

type sendFunc func(ctx context.Context, onUpdate stream.UpdateFunc) (*chat.SendResult, error)

type sendOutcome struct {
	res *chat.SendResult
	err error
}

// streamSend 在后台执行发送，前台以 SSE 推送 delta / done / error 事件
// 发送前即被拒绝（忙碌、冷却、空消息）时返回普通错误响应
// 客户端断开时请求上下文取消，按停止处理并保留已生成的文本
func (h *ChatHandler) streamSend(c *gin.Context, send sendFunc) {
	updates := make(chan string, 16)
	done := make(chan sendOutcome, 1)

	go func() {
		res, err := send(c.Request.Context(), func(partial string) {
			select {
			case updates <- partial:
			default:
				// 每次都是累计全文，丢弃中间值不影响最终结果
			}
		})
		done <- sendOutcome{res, err}
	}()

	var (
		first    *sendOutcome
		partial  string
		hasDelta bool
	)
	select {
	case partial = <-updates:
		hasDelta = true
	case out := <-done:
		if out.res == nil {
			dto.Fail(c, out.err)
			return
		}
		first = &out
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		if hasDelta {
			hasDelta = false
			c.SSEvent("delta", dto.DeltaEvent{Content: partial})
			return true
		}
		if first != nil {
			writeOutcome(c, *first)
			return false
		}
		select {
		case p := <-updates:
			c.SSEvent("delta", dto.DeltaEvent{Content: p})
			return true
		case out := <-done:
			writeOutcome(c, out)
			return false
		}
	})
}

func writeOutcome(c *gin.Context, out sendOutcome) {
	if out.err != nil {
		ae := apperrors.AsAppError(out.err)
		c.SSEvent("error", dto.ErrorEvent{Code: string(ae.Code), Message: ae.Message})
	}
	if out.res != nil {
		c.SSEvent("done", dto.NewDoneEvent(out.res))
	}
}

// Stop 停止当前生成
// @Summary 停止生成
// @Tags Chat
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/stop [post]
func (h *ChatHandler) Stop(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	dto.Success(c, dto.StopResponse{Stopped: ctrl.Stop()})
}

// SetModel 切换节点使用的模型
// @Summary 切换模型
// @Tags Chat
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/model [put]
func (h *ChatHandler) SetModel(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.SetModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "model is required")
		return
	}
	if err := ctrl.SetModel(req.Model); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewSnapshotResponse(ctrl.Snapshot()))
}

// EditMessage 编辑消息
// @Summary 编辑消息
// @Tags Chat
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/messages/{mid} [put]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.Fail(c, apperrors.ErrEmptyMessage)
		return
	}
	msg, err := ctrl.EditMessage(c.Request.Context(), dto.BindMessageID(c), req.Content)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.NewMessageResponse(msg))
}

// DeleteMessage 按位置删除消息
// @Summary 删除消息
// @Tags Chat
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/messages [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.DeleteMessageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		dto.BadRequest(c, "index must be an integer")
		return
	}
	if err := ctrl.DeleteMessage(c.Request.Context(), req.ID, req.Index); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// Branch 从指定消息处分支出新会话
// @Summary 分支会话
// @Tags Chat
// @Router /v1/boards/{board_id}/blocks/{block_id}/chat/branch [post]
func (h *ChatHandler) Branch(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	var req dto.BranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "from_index is required")
		return
	}
	if _, err := ctrl.Branch(c.Request.Context(), *req.FromIndex); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, dto.NewSnapshotResponse(ctrl.Snapshot()))
}
