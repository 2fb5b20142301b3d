package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Environment string
	ServerPort  string
	Version     string
	CORSOrigin  string
	LogLevel    string

	MongoURI      string
	MongoDatabase string

	RedisURL string

	ClerkSecretKey string
	ClerkJWKSURL   string

	StripeSecretKey     string
	StripeWebhookSecret string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Bucket           string
	S3Endpoint         string

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Load builds Config from the environment (and .env files when present).
// It fails when a required key is missing.
func Load() (*Config, error) {
	// .env.local wins over .env; godotenv never overrides variables already set.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		ServerPort:  getEnv("SERVER_PORT", "3000"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "http://localhost:3000"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),

		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "usersvc"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		ClerkSecretKey: os.Getenv("CLERK_SECRET_KEY"),
		ClerkJWKSURL:   getEnv("CLERK_JWKS_URL", "https://api.clerk.com/v1/jwks"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           os.Getenv("AWS_S3_BUCKET_NAME"),
		S3Endpoint:         os.Getenv("AWS_S3_ENDPOINT"),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MONGODB_URI", c.MongoURI},
		{"CLERK_SECRET_KEY", c.ClerkSecretKey},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"AWS_S3_BUCKET_NAME", c.S3Bucket},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}

	switch c.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("APP_ENV must be one of development, production, test")
	}

	switch c.LogLevel {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of error, warn, info, debug")
	}

	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
