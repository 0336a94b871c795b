// Package main 异步任务执行器入口（job-worker）
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/infrastructure/messaging"
	"creative-canvas-api/internal/wire"
	"creative-canvas-api/pkg/logger"
	"creative-canvas-api/pkg/tracer"
)

const (
	dlqCheckInterval = time.Minute
	dlqAlertSize     = 100
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()
	if worker.Redis == nil {
		logger.Fatal(ctx, "job-worker requires redis", errors.New("cache.redis.enabled is false"))
	}

	rs := cfg.Messaging.RedisStream
	consumer := messaging.NewConsumer(worker.Redis.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamBlobCleanup,
		Group:         messaging.ConsumerGroupBlobJanitor,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.TypeBlobCleanup, worker.Janitor.HandleMessage)

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, dlqCheckInterval, dlqAlertSize)
	logger.Info(ctx, "job-worker started", "stream", string(messaging.StreamBlobCleanup))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down job-worker...")
	consumer.Stop()
	cancel()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
