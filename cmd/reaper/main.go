// Package main は期限切れオブジェクトを削除するワンショットの掃除コマンドです。
// cronやKubernetes CronJobから定期実行する想定です。
package main

import (
	"context"
	"log"
	"time"

	"github.com/yourusername/nano-convert/internal/config"
	"github.com/yourusername/nano-convert/internal/reaper"
	"github.com/yourusername/nano-convert/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	stager, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}

	jobTTL := time.Duration(cfg.JobTTLSeconds) * time.Second
	r := reaper.New(stager.Client(), stager.Bucket(), jobTTL, log.Default())

	deleted, err := r.Sweep(ctx)
	if err != nil {
		log.Fatalf("Sweep failed after deleting %d objects: %v", deleted, err)
	}
	log.Printf("Sweep completed, deleted %d expired objects", deleted)
}
