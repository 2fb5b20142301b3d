package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"usersvc/internal/errors"
)

const rateLimitPrefix = "ratelimit:"

// RedisLimiterStore is a fixed-window echo RateLimiterStore backed by Redis.
// Redis failures allow the request.
type RedisLimiterStore struct {
	client  redis.UniversalClient
	max     int64
	window  time.Duration
	timeout time.Duration
	log     *zap.Logger
}

var _ middleware.RateLimiterStore = (*RedisLimiterStore)(nil)

// NewRedisLimiterStore allows max requests per identifier in each window.
func NewRedisLimiterStore(client redis.UniversalClient, max int, window time.Duration, log *zap.Logger) *RedisLimiterStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLimiterStore{
		client:  client,
		max:     int64(max),
		window:  window,
		timeout: 500 * time.Millisecond,
		log:     log.Named("ratelimit"),
	}
}

// Allow counts a request for identifier and reports whether it is within the limit.
func (s *RedisLimiterStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := rateLimitPrefix + identifier
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		s.log.Warn("rate limit check failed, allowing request", zap.String("key", key), zap.Error(err))
		return true, nil
	}
	// A counter without expiry opens the window, including one left behind by
	// an earlier failed EXPIRE.
	if ttl.Val() < 0 {
		if err := s.client.Expire(ctx, key, s.window).Err(); err != nil {
			s.log.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
		}
	}
	return incr.Val() <= s.max, nil
}

// RateLimit limits requests per client IP using store.
func RateLimit(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.NewHTTPError(http.StatusForbidden, "Unable to identify client", "FORBIDDEN")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return errors.NewHTTPError(http.StatusTooManyRequests, "Too many requests", "RATE_LIMITED")
		},
	})
}
