package admission

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	// 分バケットのキーはバケット境界をまたいでも確実に消えるよう61秒で失効させる
	rateLimitKeyTTL = 61 * time.Second
)

// RateLimiter はクライアントごとの流量制御を行います。
type RateLimiter interface {
	// Allow はこのリクエストを受け付けてよいか判定します。
	Allow(ctx context.Context, clientID string) bool
}

// RedisRateLimiter はRedisのアトミックなINCRで毎分カウンタを管理するRateLimiterです。
//
// カウンタストアに到達できない場合は許可します（フェイルオープン）。
// 変換サービスの可用性を厳密な流量制御より優先する意図的な判断で、
// スキャンのフェイルクローズとは対照的です。
type RedisRateLimiter struct {
	rdb    *redis.Client
	perMin int
	logger *log.Logger
	now    func() time.Time
}

// NewRedisRateLimiter はRateLimiterを作成します。
func NewRedisRateLimiter(rdb *redis.Client, perMin int, logger *log.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisRateLimiter{
		rdb:    rdb,
		perMin: perMin,
		logger: logger,
		now:    time.Now,
	}
}

// Allow はカウンタを加算し、上限超過か判定します。
func (r *RedisRateLimiter) Allow(ctx context.Context, clientID string) bool {
	bucket := r.now().Unix() / 60
	key := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, clientID, bucket)

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Printf("rate limit check failed, continuing: %v", err)
		sentry.CaptureMessage(fmt.Sprintf("rate limit backend unreachable: %v", err))
		return true
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, rateLimitKeyTTL).Err(); err != nil {
			r.logger.Printf("failed to set rate limit key TTL: %v", err)
		}
	}
	return count <= int64(r.perMin)
}
