package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/service"
	apperrors "creative-canvas-api/pkg/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.LLMConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: 5 * time.Second})
}

func TestInvoke_DecodesResult(t *testing.T) {
	var got service.InvokeRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/generate-creative", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(service.InvokeResult{
			Message:   "Here are your creatives",
			Creatives: []entity.AdCreative{{Title: "A", Headline: "Spring Sale", Tags: []string{"spring"}}},
			Images:    []string{"https://cdn/1.png"},
		})
	})

	res, err := c.Invoke(context.Background(), service.InvokeRequest{
		Mode: service.ModeCreative, Prompt: "Generate creative", Model: "gpt-4o", Context: "ctx",
	})

	require.NoError(t, err)
	assert.Equal(t, "Generate creative", got.Prompt)
	assert.Equal(t, service.ModeCreative, got.Mode)
	assert.Equal(t, "Here are your creatives", res.Message)
	require.Len(t, res.Creatives, 1)
	assert.Equal(t, "Spring Sale", res.Creatives[0].Headline)
	assert.Equal(t, []string{"https://cdn/1.png"}, res.Images)
}

func TestInvoke_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		code   apperrors.ErrorCode
	}{
		{http.StatusTooManyRequests, apperrors.CodeTooManyRequests},
		{http.StatusPaymentRequired, apperrors.CodeQuotaExceeded},
		{http.StatusInternalServerError, apperrors.CodeLLMCallFailed},
		{http.StatusBadRequest, apperrors.CodeLLMCallFailed},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tc.status)
		})
		_, err := c.Invoke(context.Background(), service.InvokeRequest{Model: "m"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, tc.code), "status %d -> %v", tc.status, err)
	}
}

func TestStream_ReturnsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/stream", r.URL.Path)
		var req service.StreamRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, []string{"https://cdn/a.png"}, req.Messages[0].Images)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"content\":\"hi\"}\n\ndata: [DONE]\n\n")
	})

	body, err := c.Stream(context.Background(), service.StreamRequest{
		Model:    "gpt-4o",
		Messages: []service.StreamMessage{{Role: entity.RoleUser, Content: "hello", Images: []string{"https://cdn/a.png"}}},
	})
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "data: [DONE]")
}

func TestStream_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Stream(context.Background(), service.StreamRequest{Model: "m"})
	assert.ErrorIs(t, err, apperrors.ErrTooManyRequests)
}

func TestClient_EmptyBaseURL(t *testing.T) {
	c := NewClient(&config.LLMConfig{})
	_, err := c.Invoke(context.Background(), service.InvokeRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeLLMCallFailed))
}
