// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"creative-canvas-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	chatHandler *handler.ChatHandler,
	creativeHandler *handler.CreativeHandler,
) {
	// 画布节点对话
	node := v1.Group("/boards/:board_id/blocks/:block_id/chat")
	{
		node.GET("", chatHandler.Snapshot)
		node.POST("/messages", chatHandler.Send) // SSE
		node.PUT("/messages/:mid", chatHandler.EditMessage)
		node.DELETE("/messages", chatHandler.DeleteMessage)
		node.POST("/regenerate", chatHandler.Regenerate) // SSE
		node.POST("/stop", chatHandler.Stop)
		node.PUT("/model", chatHandler.SetModel)
		node.POST("/branch", chatHandler.Branch)

		// 会话管理
		node.GET("/sessions", chatHandler.ListSessions)
		node.POST("/sessions", chatHandler.NewSession)
		node.POST("/sessions/:sid/activate", chatHandler.SwitchSession)
		node.DELETE("/sessions/:sid", chatHandler.DeleteSession)

		// 推送到下游创意节点
		node.POST("/push", creativeHandler.Push)
	}
}
