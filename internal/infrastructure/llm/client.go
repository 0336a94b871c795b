// Package llm 提供模型调用端点客户端
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/service"
	apperrors "creative-canvas-api/pkg/errors"
	"creative-canvas-api/pkg/logger"
	"creative-canvas-api/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// errorBodyLimit 错误响应体最多读取的字节数
const errorBodyLimit = 4096

// Client 模型调用端点客户端
type Client struct {
	baseURL      string
	apiKey       string
	creativePath string
	streamPath   string

	httpClient *http.Client
	// streamClient 不设整体超时，流式响应由 ctx 控制生命周期
	streamClient *http.Client
}

var _ service.ModelGateway = (*Client)(nil)

func NewClient(cfg *config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	creativePath := cfg.CreativePath
	if creativePath == "" {
		creativePath = "/v1/generate-creative"
	}
	streamPath := cfg.StreamPath
	if streamPath == "" {
		streamPath = "/v1/chat/stream"
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		creativePath: creativePath,
		streamPath:   streamPath,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// Invoke 同步调用，用于结构化创意与图片生成
func (c *Client) Invoke(ctx context.Context, req service.InvokeRequest) (*service.InvokeResult, error) {
	ctx, span := tracer.Start(ctx, "llm.Client.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.mode", string(req.Mode)),
		attribute.String("llm.model", req.Model),
	)

	start := time.Now()
	resp, err := c.post(ctx, c.httpClient, c.creativePath, req)
	if err != nil {
		c.observe(string(req.Mode), req.Model, start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var out service.InvokeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		err = apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("failed to decode invoke response: %w", err))
		c.observe(string(req.Mode), req.Model, start, err)
		span.RecordError(err)
		return nil, err
	}
	c.observe(string(req.Mode), req.Model, start, nil)
	return &out, nil
}

// Stream 发起流式对话，返回的 Body 由调用方关闭
func (c *Client) Stream(ctx context.Context, req service.StreamRequest) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "llm.Client.Stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	start := time.Now()
	resp, err := c.post(ctx, c.streamClient, c.streamPath, req)
	c.observe(string(service.ModeStream), req.Model, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, payload any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("llm base url is empty"))
	}
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("invalid llm endpoint: %w", err))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("failed to marshal llm request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("failed to create llm request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok && rid != "" {
		httpReq.Header.Set("X-Request-ID", rid)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		// ctx 取消原样返回，调用方据此区分主动停止
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.ErrLLMCallFailed.WithError(fmt.Errorf("llm request failed: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, StatusError(resp.StatusCode, string(detail))
	}
	return resp, nil
}

// StatusError 将非 2xx 状态码转换为应用错误
func StatusError(status int, detail string) error {
	cause := fmt.Errorf("llm endpoint returned status %d: %s", status, strings.TrimSpace(detail))
	switch status {
	case http.StatusTooManyRequests:
		return apperrors.ErrTooManyRequests.WithError(cause)
	case http.StatusPaymentRequired:
		return apperrors.ErrQuotaExceeded.WithError(cause)
	default:
		return apperrors.ErrLLMCallFailed.WithError(cause)
	}
}

func (c *Client) observe(mode, model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeUnknown {
			status = strconv.Itoa(appErr.HTTPStatus)
		}
	}
	metrics.LLMCallDuration.WithLabelValues(mode, model).Observe(time.Since(start).Seconds())
	metrics.LLMCallTotal.WithLabelValues(mode, model, status).Inc()
}
