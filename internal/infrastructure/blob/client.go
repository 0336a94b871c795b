// Package blob 提供图片存储的删除客户端
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/service"
	apperrors "creative-canvas-api/pkg/errors"
)

var tracer = otel.Tracer("blob")

// Client 通过存储服务的删除接口按 URL 删除图片
type Client struct {
	endpoint   string
	apiKey     string
	publicURL  string
	httpClient *http.Client
}

var _ service.BlobStore = (*Client)(nil)

func NewClient(cfg *config.BlobConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimSpace(cfg.DeleteEndpoint),
		apiKey:     cfg.APIKey,
		publicURL:  strings.TrimRight(cfg.PublicURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Owns URL 是否属于本存储
func (c *Client) Owns(url string) bool {
	if url == "" || strings.HasPrefix(url, "data:") {
		return false
	}
	if c.publicURL == "" {
		return true
	}
	return strings.HasPrefix(url, c.publicURL+"/")
}

// Delete 删除单个对象；未配置端点或 URL 不属于本存储时为 no-op
func (c *Client) Delete(ctx context.Context, url string) error {
	if c.endpoint == "" || !c.Owns(url) {
		return nil
	}

	ctx, span := tracer.Start(ctx, "blob.Client.Delete")
	defer span.End()

	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("failed to marshal blob delete request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create blob delete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "blob delete failed")
	}
	defer resp.Body.Close()

	// 已不存在视为成功
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("blob delete returned status %d", resp.StatusCode)
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodeStorageError, "blob delete failed")
	}
	return nil
}
