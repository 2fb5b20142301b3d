package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	// ResponseCacheTTL is how long a cached GET response is served.
	ResponseCacheTTL = 300 * time.Second
	// ResponseCachePrefix prefixes every response cache key.
	ResponseCachePrefix = "user:"

	headerXCache = "X-Cache"
)

// ResponseStore is the key-value store backing the response cache.
type ResponseStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheResponse serves GET responses from store, keyed by request URI.
// Store failures never fail the request; writes do not invalidate entries.
func CacheResponse(store ResponseStore, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	fill := middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(c echo.Context, _, body []byte) {
			status := c.Response().Status
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return
			}
			key := cacheKey(c)
			if err := store.Set(c.Request().Context(), key, body, ttl); err != nil {
				log.Warn("response cache write failed", zap.String("key", key), zap.Error(err))
			}
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		miss := fill(next)
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return next(c)
			}

			key := cacheKey(c)
			data, err := store.Get(c.Request().Context(), key)
			if err != nil {
				log.Warn("response cache read failed", zap.String("key", key), zap.Error(err))
			} else if data != nil {
				c.Response().Header().Set(headerXCache, "HIT")
				return c.JSONBlob(http.StatusOK, data)
			}

			c.Response().Header().Set(headerXCache, "MISS")
			return miss(c)
		}
	}
}

func cacheKey(c echo.Context) string {
	return ResponseCachePrefix + c.Request().RequestURI
}
