//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/infrastructure/persistence/postgres"
	"creative-canvas-api/internal/interfaces/http/handler"
	"creative-canvas-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 api-gateway
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StorageSet,
		CleanupSet,
		ChatSet,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvideRedisClient,
		ProvideBlobStore,
		ProvideJanitor,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializePostgres 仅初始化 PostgreSQL（用于 bootstrap）
func InitializePostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	wire.Build(ProvidePostgresClient)
	return nil, nil, nil
}

// StorageSet 存储与缓存
var StorageSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideRedisClient,
	ProvideStores,
	ProvideChatRepository,
)

// CleanupSet 会话图片清理
var CleanupSet = wire.NewSet(
	ProvidePublisher,
	ProvideBlobStore,
	ProvideJanitor,
	ProvideImageCleaner,
)

// ChatSet 对话与创意推送
var ChatSet = wire.NewSet(
	ProvideModelGateway,
	ProvideSendGate,
	ProvideChatDeps,
	ProvideRegistry,
	ProvidePusher,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideRateLimiter,
	handler.NewChatHandler,
	handler.NewCreativeHandler,
	handler.NewHealthHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
