// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	apperrors "creative-canvas-api/pkg/errors"
	"creative-canvas-api/pkg/logger"
)

// Recovery Panic 恢复中间件
// SSE 响应头已写出时只能中断连接，不再写 JSON
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", err),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":     apperrors.CodeInternalError,
					"message":  apperrors.ErrInternalError.Message,
					"trace_id": c.GetString("trace_id"),
				})
			}
		}()

		c.Next()
	}
}
