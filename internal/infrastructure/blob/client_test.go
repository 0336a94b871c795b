package blob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/config"
	apperrors "creative-canvas-api/pkg/errors"
)

func TestDelete(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodDelete, r.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["url"] {
		case "https://cdn.example.com/creatives/gone.png":
			w.WriteHeader(http.StatusNotFound)
		case "https://cdn.example.com/creatives/broken.png":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(&config.BlobConfig{DeleteEndpoint: srv.URL, PublicURL: "https://cdn.example.com/"})
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "https://cdn.example.com/creatives/a.png"))
	require.NoError(t, c.Delete(ctx, "https://cdn.example.com/creatives/gone.png"))

	err := c.Delete(ctx, "https://cdn.example.com/creatives/broken.png")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStorageError))

	// 非本存储的地址与内联数据不发请求
	require.NoError(t, c.Delete(ctx, "https://elsewhere.com/x.png"))
	require.NoError(t, c.Delete(ctx, "data:image/png;base64,AAAA"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDelete_NoEndpoint(t *testing.T) {
	c := NewClient(&config.BlobConfig{})
	assert.NoError(t, c.Delete(context.Background(), "https://cdn/x.png"))
}
