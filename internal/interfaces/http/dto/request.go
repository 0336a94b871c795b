package dto

import (
	"github.com/gin-gonic/gin"
)

// NodeURI 画布节点路径参数
type NodeURI struct {
	BoardID string `uri:"board_id" binding:"required"`
	BlockID string `uri:"block_id" binding:"required"`
}

// BindSessionID 从 URI 绑定会话 ID
func BindSessionID(c *gin.Context) string {
	return c.Param("sid")
}

// BindMessageID 从 URI 绑定消息 ID
func BindMessageID(c *gin.Context) string {
	return c.Param("mid")
}
