package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	_ "usersvc/docs" // swagger docs

	"usersvc/internal/auth"
	"usersvc/internal/cache"
	"usersvc/internal/config"
	"usersvc/internal/db"
	"usersvc/internal/handler"
	"usersvc/internal/logger"
	"usersvc/internal/middleware"
	"usersvc/internal/payment"
	"usersvc/internal/repository"
	"usersvc/internal/router"
	"usersvc/internal/service"
	"usersvc/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title User Service API
// @version 1.0
// @description User accounts backed by Clerk identities, with Stripe payments and S3 avatars.
// @host localhost:3000
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and a Clerk session token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := db.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn("mongo disconnect", zap.Error(err))
		}
	}()
	database := mongoClient.Database(cfg.MongoDatabase)
	if err := db.EnsureIndexes(ctx, database, log); err != nil {
		return err
	}

	cacheClient, err := cache.New(cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup, cache and rate limit degrade", zap.Error(err))
	}

	files, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWSRegion,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
	}, log)
	if err != nil {
		return err
	}

	verifier := auth.NewClerkVerifier(cfg.ClerkJWKSURL, cfg.ClerkSecretKey, log)
	stripeClient := payment.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil, log)

	// Initialize repositories and services
	userRepo := repository.NewUserRepository(database)
	userService := service.NewUserService(userRepo, stripeClient, files, log)
	paymentService := service.NewPaymentService(userService, stripeClient, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.IsDevelopment()

	router.Register(e, cfg, router.Deps{
		Verifier:      verifier,
		ResponseCache: cacheClient,
		RateLimiter:   middleware.NewRedisLimiterStore(cacheClient.Redis(), cfg.RateLimitMax, cfg.RateLimitWindow, log),
		Log:           log,
	}, router.Handlers{
		App:      handler.NewAppHandler(cfg.Version),
		Users:    handler.NewUserHandler(userService),
		Payments: handler.NewPaymentHandler(paymentService),
	})

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr), zap.String("environment", cfg.Environment))
		if cfg.IsDevelopment() {
			log.Info("swagger ui", zap.String("url", "http://localhost"+addr+"/swagger/index.html"))
		}
		if err := e.Start(addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(sctx)
}
