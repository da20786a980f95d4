// Package main は変換ワーカーのエントリーポイントです。
// APIサーバーとは別プロセスとして起動し、キューからジョブを取り出して処理します。
package main

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/nano-convert/internal/config"
	"github.com/yourusername/nano-convert/internal/convert"
	"github.com/yourusername/nano-convert/internal/jobs"
	"github.com/yourusername/nano-convert/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.GinMode,
		}); err != nil {
			log.Fatalf("sentry.Init: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(opt)

	stager, err := storage.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}

	jobTTL := time.Duration(cfg.JobTTLSeconds) * time.Second
	store := jobs.NewStore(rdb, jobTTL)

	manager, err := jobs.NewManager(cfg, store, stager, convert.NewRegistry(), log.Default())
	if err != nil {
		log.Fatalf("Failed to init job manager: %v", err)
	}

	log.Printf("Starting worker (concurrency: %d)", cfg.WorkerConcurrency)
	if err := manager.Run(); err != nil {
		log.Fatalf("Worker stopped with error: %v", err)
	}
}
