package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger logs every finished request through log.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:        true,
		LogURI:           true,
		LogMethod:        true,
		LogLatency:       true,
		LogRemoteIP:      true,
		LogUserAgent:     true,
		LogRequestID:     true,
		LogContentLength: true,
		LogResponseSize:  true,
		LogError:         true,
		HandleError:      true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := zapcore.InfoLevel
			switch {
			case v.Status >= 500:
				level = zapcore.ErrorLevel
			case v.Status >= 400:
				level = zapcore.WarnLevel
			}
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("user_agent", v.UserAgent),
				zap.Int64("response_size", v.ResponseSize),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Log(level, "request", fields...)
			return nil
		},
	})
}

// HandlerLogger logs the start and completion time of each handler call,
// tagged with the caller's user id or "anonymous".
func HandlerLogger(log *zap.Logger) echo.MiddlewareFunc {
	log = log.Named("handler")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := "anonymous"
			if u, ok := CurrentUser(c); ok {
				userID = u.ID
			}
			req := c.Request()
			log.Debug("request started",
				zap.String("user_id", userID),
				zap.String("method", req.Method),
				zap.String("url", req.RequestURI),
			)

			start := time.Now()
			err := next(c)
			if err != nil {
				return err
			}
			// Wrapping middleware such as BodyDump may already have rendered an error.
			fields := []zap.Field{
				zap.String("user_id", userID),
				zap.String("method", req.Method),
				zap.String("url", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("elapsed", time.Since(start)),
			}
			if c.Response().Status >= http.StatusBadRequest {
				log.Warn("request failed", fields...)
				return nil
			}
			log.Info("request completed", fields...)
			return nil
		}
	}
}
