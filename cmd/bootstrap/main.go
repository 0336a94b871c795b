package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"creative-canvas-api/internal/config"
	"creative-canvas-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting schema bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Driver == wire.DriverMemory {
		fmt.Println("database.driver is memory, nothing to migrate")
		return
	}

	ctx := context.Background()

	client, cleanup, err := wire.InitializePostgres(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer cleanup()

	if err := client.AutoMigrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	fmt.Println("Schema is up to date.")
}
