// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/nano-convert/internal/admission"
	"github.com/yourusername/nano-convert/internal/api"
	"github.com/yourusername/nano-convert/internal/config"
	"github.com/yourusername/nano-convert/internal/convert"
	"github.com/yourusername/nano-convert/internal/jobs"
	"github.com/yourusername/nano-convert/internal/scan"
	"github.com/yourusername/nano-convert/internal/storage"
)

func main() {
	// 設定の読み込み
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
		// 終了前にバッファ済みイベントを送出する
		defer sentry.Flush(2 * time.Second)
	}

	gin.SetMode(cfg.GinMode)

	router, err := buildRouter(cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildRouter は依存コンポーネントを構築してルーティングを配線します。
func buildRouter(cfg *config.Config) (*gin.Engine, error) {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// 共有クライアントは明示的に構築し、各コンポーネントへ注入する
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	stager, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	jobTTL := time.Duration(cfg.JobTTLSeconds) * time.Second
	store := jobs.NewStore(rdb, jobTTL)

	manager, err := jobs.NewManager(cfg, store, stager, convert.NewRegistry(), log.Default())
	if err != nil {
		return nil, err
	}

	var scanner scan.Scanner
	if cfg.ClamAVEnabled {
		scanner = scan.NewClamAV(cfg.ClamdAddress)
	} else {
		log.Printf("ClamAV scanning disabled by configuration")
		scanner = scan.Disabled{}
	}

	limiter := admission.NewRedisRateLimiter(rdb, cfg.RateLimitPerMin, log.Default())
	controller := admission.NewController(limiter, scanner, cfg.MaxUploadBytes)

	presignTTL := time.Duration(cfg.PresignTTLSeconds) * time.Second

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", api.HealthHandler(rdb, stager))
		apiGroup.GET("/tools", api.ListToolsHandler())
		apiGroup.POST("/tools/:slug", api.RunToolHandler(controller, stager, store, manager, log.Default()))
		apiGroup.GET("/jobs/:id", api.JobStatusHandler(store, stager, presignTTL, log.Default()))
	}

	return router, nil
}
