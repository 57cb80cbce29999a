// Package main 将旧版 books.json 拆分为逐本文件
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"storybook-studio/internal/config"
	"storybook-studio/internal/infrastructure/storage/filesystem"
	"storybook-studio/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	dataDir := flag.String("data-dir", "", "data directory (defaults to storage.data_dir)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	dir := cfg.Storage.DataDir
	if *dataDir != "" {
		dir = *dataDir
	}

	ctx := context.Background()
	result, err := filesystem.MigrateLegacyBooks(ctx, dir)
	if err != nil {
		logger.Error(ctx, "migration failed", err, "data_dir", dir)
		os.Exit(1)
	}

	if !result.Found {
		return
	}
	for _, name := range result.Migrated {
		logger.Info(ctx, "created book file", "file", name)
	}
	logger.Info(ctx, "legacy file renamed",
		"backup", result.Backup,
		"migrated", len(result.Migrated),
		"skipped", result.Skipped,
	)
}
