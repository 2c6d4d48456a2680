package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/spinsight/internal/apperr"
	"github.com/example/spinsight/internal/metrics"
)

// CodeRequestLimiter caps how many codes a subject may request per purpose in a window.
type CodeRequestLimiter interface {
	Allow(ctx context.Context, subject, purpose string) error
}

// RedisCodeLimiter counts requests in a fixed redis window.
type RedisCodeLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int
	log    *zap.Logger
}

// NewRedisCodeLimiter builds a limiter. A nil client or a non-positive limit allows everything.
func NewRedisCodeLimiter(rdb *redis.Client, window time.Duration, limit int, log *zap.Logger) *RedisCodeLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCodeLimiter{rdb: rdb, window: window, limit: limit, log: log}
}

// Allow records one request and returns ErrTooManyRequests once the window budget is spent.
// Redis failures are logged and the request is allowed.
func (l *RedisCodeLimiter) Allow(ctx context.Context, subject, purpose string) error {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return nil
	}

	key := fmt.Sprintf("otp:count:%s:%s", purpose, subject)

	// SET NX EX opens the window in the same transaction as INCR.
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetArgs(ctx, key, 0, redis.SetArgs{Mode: "NX", TTL: l.window})
		incr = pipe.Incr(ctx, key)
		return nil
	})
	// SET NX replies nil when the window is already open.
	if err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn("code limiter unavailable", zap.Error(err))
		return nil
	}
	count, err := incr.Result()
	if err != nil {
		l.log.Warn("code limiter unavailable", zap.Error(err))
		return nil
	}

	if count > int64(l.limit) {
		metrics.CodeRequestsLimitedTotal.Inc()
		return apperr.ErrTooManyRequests
	}
	return nil
}
