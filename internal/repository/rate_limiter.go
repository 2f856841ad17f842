package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisRateLimiter caps OTP issuance per mobile with a fixed window counter
// in Redis. INCR is atomic, so concurrent bursts cannot undercount; the key
// expires when the window rolls over.
type RedisRateLimiter struct {
	client      *redis.Client
	window      time.Duration
	maxRequests int
	logger      *logrus.Logger
}

func NewRedisRateLimiter(client *redis.Client, window time.Duration, maxRequests int, logger *logrus.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		window:      window,
		maxRequests: maxRequests,
		logger:      logger,
	}
}

// Allow records the request and reports whether it is within the window cap.
// Every call counts, including rejected ones.
func (l *RedisRateLimiter) Allow(ctx context.Context, mobile string) (bool, error) {
	key := fmt.Sprintf("otp:ratelimit:%s", mobile)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First request in a fresh window starts the clock.
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.WithError(err).WithField("mobile", mobile).Warn("Failed to set rate limit window expiry")
		}
	}

	return count <= int64(l.maxRequests), nil
}
