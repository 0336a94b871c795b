package wire

import (
	"context"

	"creative-canvas-api/internal/application/chat"
	"creative-canvas-api/internal/application/cleanup"
	"creative-canvas-api/internal/application/creative"
	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/domain/repository"
	"creative-canvas-api/internal/domain/service"
	"creative-canvas-api/internal/infrastructure/blob"
	"creative-canvas-api/internal/infrastructure/llm"
	"creative-canvas-api/internal/infrastructure/messaging"
	"creative-canvas-api/internal/infrastructure/persistence/memory"
	"creative-canvas-api/internal/infrastructure/persistence/postgres"
	"creative-canvas-api/internal/infrastructure/persistence/redis"
	"creative-canvas-api/internal/interfaces/http/middleware"
	"creative-canvas-api/internal/interfaces/http/router"
	"creative-canvas-api/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultStreamMaxLen = 100000
)

// App api-gateway 运行所需的组件
type App struct {
	Router   *router.Router
	Registry *chat.Registry
}

// Worker job-worker 运行所需的组件
type Worker struct {
	Redis   *redis.Client
	Janitor *cleanup.Janitor
}

// Stores 存储后端，由 database.driver 决定
type Stores struct {
	Chat    repository.ChatRepository
	Blocks  repository.BlockRepository
	Targets repository.CreativeTargetRepository
	Tx      repository.Transactor
}

// ProvidePostgresClient driver 为 memory 时返回 nil
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if cfg.Database.Driver == DriverMemory {
		logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 未启用时返回 nil
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideStores(pg *postgres.Client) Stores {
	if pg == nil {
		canvas := memory.NewCanvasStore()
		return Stores{
			Chat:    memory.NewChatStore(),
			Blocks:  canvas,
			Targets: canvas,
		}
	}
	return Stores{
		Chat:    postgres.NewChatRepository(pg),
		Blocks:  postgres.NewBlockRepository(pg),
		Targets: postgres.NewCreativeTargetRepository(pg),
		Tx:      postgres.NewTxManager(pg),
	}
}

// ProvideChatRepository 启用 Redis 且配置了 history_ttl 时加一层历史缓存
func ProvideChatRepository(cfg *config.Config, stores Stores, redisClient *redis.Client) repository.ChatRepository {
	if redisClient == nil || cfg.Cache.HistoryTTL <= 0 {
		return stores.Chat
	}
	return redis.NewCachedChatRepository(stores.Chat, redis.NewCache(redisClient), cfg.Cache.HistoryTTL)
}

// ProvideSendGate 多副本部署时跨实例共享发送冷却
func ProvideSendGate(cfg *config.Config, redisClient *redis.Client) chat.SendGate {
	if redisClient == nil || !cfg.Chat.DistributedGate {
		return nil
	}
	return redis.NewSendGate(redisClient)
}

func ProvideRateLimiter(redisClient *redis.Client) middleware.RateLimiter {
	if redisClient == nil {
		return nil
	}
	return redis.NewRateLimiter(redisClient)
}

// ProvidePublisher 图片清理走 Redis Stream；返回 nil 时同步删除
func ProvidePublisher(cfg *config.Config, redisClient *redis.Client) cleanup.Publisher {
	if redisClient == nil || !cfg.Chat.CleanupAsync {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

func ProvideBlobStore(cfg *config.Config) service.BlobStore {
	return blob.NewClient(&cfg.Storage.Blob)
}

func ProvideJanitor(store service.BlobStore) *cleanup.Janitor {
	return cleanup.NewJanitor(store, 0)
}

func ProvideImageCleaner(publisher cleanup.Publisher, janitor *cleanup.Janitor) chat.ImageCleaner {
	return cleanup.NewDispatcher(publisher, janitor)
}

func ProvideModelGateway(cfg *config.Config) service.ModelGateway {
	return llm.NewClient(&cfg.LLM)
}

func ProvideChatDeps(
	repo repository.ChatRepository,
	stores Stores,
	gateway service.ModelGateway,
	gate chat.SendGate,
	cleaner chat.ImageCleaner,
) chat.Deps {
	return chat.Deps{
		Repo:    repo,
		Blocks:  stores.Blocks,
		Gateway: gateway,
		Gate:    gate,
		Cleaner: cleaner,
	}
}

func ProvideRegistry(cfg *config.Config, deps chat.Deps) *chat.Registry {
	return chat.NewRegistry(deps, chat.OptionsFromConfig(cfg))
}

func ProvidePusher(stores Stores) *creative.Pusher {
	return creative.NewPusher(stores.Targets, stores.Tx)
}
