package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/infrastructure/persistence/memory"
	"creative-canvas-api/internal/infrastructure/persistence/redis"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "creative-canvas-api"
	cfg.App.Env = "test"
	cfg.Database.Driver = DriverMemory
	cfg.LLM.BaseURL = "http://127.0.0.1:1"
	return cfg
}

func TestInitializeApp_MemoryDriver(t *testing.T) {
	app, cleanup, err := InitializeApp(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, app.Registry)
	ctrl := app.Registry.Get("b1", "c1")
	assert.Same(t, ctrl, app.Registry.Get("b1", "c1"))

	w := httptest.NewRecorder()
	app.Router.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"disabled"`)
}

func TestProvideStores_Memory(t *testing.T) {
	stores := ProvideStores(nil)
	assert.IsType(t, &memory.ChatStore{}, stores.Chat)
	assert.IsType(t, &memory.CanvasStore{}, stores.Blocks)
	assert.Same(t, stores.Blocks, stores.Targets)
	assert.Nil(t, stores.Tx)
}

func TestOptionalRedisProviders(t *testing.T) {
	cfg := memoryConfig()
	cfg.Chat.DistributedGate = true
	cfg.Chat.CleanupAsync = true

	assert.Nil(t, ProvideSendGate(cfg, nil))
	assert.Nil(t, ProvideRateLimiter(nil))
	assert.Nil(t, ProvidePublisher(cfg, nil))

	stores := ProvideStores(nil)
	assert.Same(t, stores.Chat, ProvideChatRepository(cfg, stores, nil))

	cfg.Cache.HistoryTTL = 0
	client := &redis.Client{}
	assert.Same(t, stores.Chat, ProvideChatRepository(cfg, stores, client))
	assert.Nil(t, ProvideSendGate(&config.Config{}, client))
}
