package admission

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, perMin int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisRateLimiter(rdb, perMin, log.New(io.Discard, "", 0)), mr
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 60)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if !limiter.Allow(ctx, "10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("61st request in the same minute should be denied")
	}
}

func TestRateLimiterResetsOnNextMinute(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	limiter.now = func() time.Time { return base }

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("second request in the same bucket should be denied")
	}

	limiter.now = func() time.Time { return base.Add(time.Minute) }
	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("request in the next bucket should be allowed")
	}
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	if !limiter.Allow(ctx, "10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !limiter.Allow(ctx, "10.0.0.2") {
		t.Fatal("second client should not share the first client's counter")
	}
}

func TestRateLimiterFailsOpenWhenBackendIsDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()

	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Fatal("requests should be allowed when the counter store is unreachable")
	}
}
