// Package service 定义领域层依赖的外部服务端口
package service

import (
	"context"
	"io"

	"creative-canvas-api/internal/domain/entity"
)

// InvocationMode 模型调用路径
type InvocationMode string

const (
	ModeStream   InvocationMode = "stream"
	ModeCreative InvocationMode = "creative"
	ModeImage    InvocationMode = "image"
)

// InvokeRequest 同步调用请求（结构化创意与图片生成）
type InvokeRequest struct {
	Mode    InvocationMode `json:"mode"`
	Prompt  string         `json:"prompt"`
	Model   string         `json:"model"`
	Context string         `json:"context,omitempty"`
	Images  []string       `json:"images,omitempty"`
}

// InvokeResult 同步调用结果
type InvokeResult struct {
	Message   string              `json:"message"`
	Images    []string            `json:"images,omitempty"`
	Creatives []entity.AdCreative `json:"creatives,omitempty"`
}

// StreamMessage 流式请求中的一条消息，Images 作为多模态输入
type StreamMessage struct {
	Role    entity.Role `json:"role"`
	Content string      `json:"content"`
	Images  []string    `json:"images,omitempty"`
}

// StreamRequest 流式对话请求
type StreamRequest struct {
	Messages []StreamMessage `json:"messages"`
	Model    string          `json:"model"`
	// Context 参考资料，作为系统上下文发送
	Context string `json:"context,omitempty"`
}

// ModelGateway 模型调用端点
// 非 2xx 响应：429 -> ErrTooManyRequests，402 -> ErrQuotaExceeded，其余 -> ErrLLMCallFailed
type ModelGateway interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
	// Stream 返回行分隔的事件流，调用方负责关闭
	Stream(ctx context.Context, req StreamRequest) (io.ReadCloser, error)
}

// BlobStore 图片存储，仅通过公开 URL 访问
type BlobStore interface {
	// Delete 尽力删除，URL 不属于本存储时忽略
	Delete(ctx context.Context, url string) error
}
