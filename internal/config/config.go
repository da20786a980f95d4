// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// Redis設定（ジョブメタデータ・レート制限・キューで共用）
	RedisURL string

	// S3互換ストレージ設定（Cloudflare R2 / MinIO）
	S3Endpoint        string // 例: https://<accountid>.r2.cloudflarestorage.com
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// ClamAV設定
	ClamAVEnabled bool   // falseの場合はスキャンをスキップ
	ClamdAddress  string // 例: tcp://127.0.0.1:3310

	// アップロード制限・レート制限
	MaxUploadBytes  int64 // グローバルな単一ファイル最大サイズ（バイト）
	RateLimitPerMin int   // クライアントあたりの毎分リクエスト上限

	// ジョブ設定
	JobTTLSeconds     int // ジョブと成果物の有効期間（秒）
	WorkerConcurrency int // ワーカープロセスの同時実行数
	PresignTTLSeconds int // 署名付きダウンロードURLの有効期間（秒）

	// 監視
	SentryDSN string // 空の場合はSentry連携を無効化
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Bucket:          getEnv("S3_BUCKET", "nano-convert-temp"),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		ClamAVEnabled: getEnvAsBool("CLAMAV_ENABLED", true),
		ClamdAddress:  getEnv("CLAMD_ADDRESS", "tcp://127.0.0.1:3310"),

		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 50*1024*1024), // 50MB
		RateLimitPerMin: getEnvAsInt("RATE_LIMIT_PER_MIN", 60),

		JobTTLSeconds:     getEnvAsInt("JOB_TTL_SECONDS", 3600),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		PresignTTLSeconds: getEnvAsInt("PRESIGN_TTL_SECONDS", 3600),

		SentryDSN: getEnv("SENTRY_DSN", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発ではS3エンドポイント等は任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required in release mode")
		}
		if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
			return fmt.Errorf("S3 credentials are required in release mode")
		}
	}
	if c.JobTTLSeconds <= 0 {
		return fmt.Errorf("JOB_TTL_SECONDS must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
