package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/application/chat"
	"creative-canvas-api/internal/application/creative"
	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/entity"
	"creative-canvas-api/internal/domain/service"
	"creative-canvas-api/internal/infrastructure/persistence/memory"
	"creative-canvas-api/internal/interfaces/http/handler"
	apperrors "creative-canvas-api/pkg/errors"
)

type scriptedGateway struct {
	tokens    []string
	streamErr error
}

func (g *scriptedGateway) Stream(ctx context.Context, req service.StreamRequest) (io.ReadCloser, error) {
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	var b strings.Builder
	for _, tok := range g.tokens {
		fmt.Fprintf(&b, "data: {\"content\":%q}\n", tok)
	}
	b.WriteString("data: [DONE]\n")
	return io.NopCloser(strings.NewReader(b.String())), nil
}

func (g *scriptedGateway) Invoke(ctx context.Context, req service.InvokeRequest) (*service.InvokeResult, error) {
	return &service.InvokeResult{
		Message:   "Concepts ready",
		Creatives: []entity.AdCreative{{Title: "Urgency", Headline: "Ends Sunday", PrimaryText: "30% off"}},
	}, nil
}

type testServer struct {
	engine  *gin.Engine
	canvas  *memory.CanvasStore
	gateway *scriptedGateway
	clock   time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		canvas:  memory.NewCanvasStore(),
		gateway: &scriptedGateway{tokens: []string{"## Headlines\n", "1. Save Big Today\n", "2. Act Now"}},
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	// 每次读取推进 10 秒，避开发送冷却
	clock := func() time.Time {
		ts.clock = ts.clock.Add(10 * time.Second)
		return ts.clock
	}

	registry := chat.NewRegistry(chat.Deps{
		Repo:    memory.NewChatStore(),
		Blocks:  ts.canvas,
		Gateway: ts.gateway,
		Clock:   clock,
	}, chat.Options{CreativeKeywords: []string{"facebook ad"}, DefaultModel: "gpt-4o-mini"})

	cfg := &config.Config{}
	cfg.App.Name = "creative-canvas-api"
	cfg.App.Env = "test"

	r := New(cfg, Handlers{
		Chat:     handler.NewChatHandler(registry),
		Creative: handler.NewCreativeHandler(registry, creative.NewPusher(ts.canvas, nil)),
		Health:   handler.NewHealthHandler(nil, nil),
	}, nil)
	ts.engine = r.Engine()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := newStreamRecorder()
	ts.engine.ServeHTTP(w, req)
	return w.ResponseRecorder
}

// streamRecorder 补上 gin 流式输出所需的 CloseNotify
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

const nodePath = "/v1/boards/b1/blocks/c1/chat"

type sseEvent struct {
	name string
	data string
}

func parseSSE(body string) []sseEvent {
	var out []sseEvent
	for _, chunk := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(chunk, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				ev.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
		if ev.name != "" {
			out = append(out, ev)
		}
	}
	return out
}

func lastEvent(t *testing.T, events []sseEvent, name string) sseEvent {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].name == name {
			return events[i]
		}
	}
	t.Fatalf("no %q event in %v", name, events)
	return sseEvent{}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"disabled"`)
}

func TestSendStreamsDeltaAndDone(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, nodePath+"/messages", `{"message":"give me headlines"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(w.Body.String())
	done := lastEvent(t, events, "done")

	var payload struct {
		Path  string `json:"path"`
		Reply struct {
			Content  string `json:"content"`
			Sections []struct {
				Type  string `json:"type"`
				Items []struct {
					ID      string `json:"id"`
					Content string `json:"content"`
				} `json:"items"`
			} `json:"sections"`
		} `json:"reply"`
	}
	require.NoError(t, json.Unmarshal([]byte(done.data), &payload))
	assert.Equal(t, "stream", payload.Path)
	assert.Equal(t, "## Headlines\n1. Save Big Today\n2. Act Now", payload.Reply.Content)
	require.Len(t, payload.Reply.Sections, 1)
	assert.Equal(t, "headline-variants", payload.Reply.Sections[0].Type)
	require.Len(t, payload.Reply.Sections[0].Items, 2)

	w = ts.do(t, http.MethodGet, nodePath, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Save Big Today")
}

func TestSendRejectedBeforeStreaming(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, nodePath+"/messages", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(apperrors.CodeEmptyMessage))
}

func TestSendProviderErrorIsReportedAsEvent(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.streamErr = apperrors.ErrQuotaExceeded

	w := ts.do(t, http.MethodPost, nodePath+"/messages", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	ev := lastEvent(t, parseSSE(w.Body.String()), "error")
	assert.Contains(t, ev.data, string(apperrors.CodeQuotaExceeded))
}

func TestPushItemToCreativeTarget(t *testing.T) {
	ts := newTestServer(t)
	ts.canvas.PutTarget(&entity.CreativeTarget{ID: "fb-1", BoardID: "b1"})

	w := ts.do(t, http.MethodPost, nodePath+"/messages", `{"message":"give me headlines"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap struct {
		Data struct {
			Messages []struct {
				ID       string `json:"id"`
				Role     string `json:"role"`
				Sections []struct {
					Items []struct {
						ID string `json:"id"`
					} `json:"items"`
				} `json:"sections"`
			} `json:"messages"`
		} `json:"data"`
	}
	w = ts.do(t, http.MethodGet, nodePath, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Data.Messages, 2)
	reply := snap.Data.Messages[1]
	require.Equal(t, "assistant", reply.Role)
	itemID := reply.Sections[0].Items[1].ID

	body := fmt.Sprintf(`{"target_id":"fb-1","message_id":%q,"item_id":%q}`, reply.ID, itemID)
	w = ts.do(t, http.MethodPost, nodePath+"/push", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"headline":"Act Now"`)

	w = ts.do(t, http.MethodPost, nodePath+"/push", `{"target_id":"missing","message_id":"`+reply.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, nodePath+"/messages", `{"message":"first"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, nodePath+"/branch", `{"from_index":0}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "first (branch)")

	var list struct {
		Data []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	w = ts.do(t, http.MethodGet, nodePath+"/sessions", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)

	original := list.Data[1]
	w = ts.do(t, http.MethodPost, nodePath+"/sessions/"+original.ID+"/activate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"first"`)

	w = ts.do(t, http.MethodDelete, nodePath+"/sessions/"+original.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPost, nodePath+"/sessions/"+original.ID+"/activate", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, nodePath+"/model", `{"model":"gpt-4o"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"model":"gpt-4o"`)
}

func TestStopWhenIdle(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, nodePath+"/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stopped":false`)
}
