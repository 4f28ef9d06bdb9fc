package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	Env         string
	ServiceName string
	LogLevel    string

	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	AdminEmail    string
	AdminPassword string

	PaymentTimeout      time.Duration
	PaymentLatency      time.Duration
	PaymentDeclineEvery int

	CheckoutRatePerMinute int
	GuestCartTTL          time.Duration
	CommitRetries         int
	AllowedOrigins        string
}

// Load reads .env (when present) and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:           envOr("URBANCART_ADDR", ":8080"),
		Env:            envOr("APP_ENV", "dev"),
		ServiceName:    envOr("SERVICE_NAME", "urbancart"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AllowedOrigins: envOr("CORS_ALLOW_ORIGINS", "*"),
	}

	var errs []error
	cfg.PaymentTimeout = durationOr("PAYMENT_TIMEOUT", 5*time.Second, &errs)
	cfg.PaymentLatency = durationOr("PAYMENT_LATENCY", 0, &errs)
	cfg.GuestCartTTL = durationOr("GUEST_CART_TTL", 72*time.Hour, &errs)
	cfg.PaymentDeclineEvery = intOr("PAYMENT_DECLINE_EVERY", 3, &errs)
	cfg.CheckoutRatePerMinute = intOr("CHECKOUT_RATE_PER_MINUTE", 10, &errs)
	cfg.CommitRetries = intOr("ORDER_COMMIT_RETRIES", 3, &errs)

	if cfg.PaymentDeclineEvery < 0 {
		errs = append(errs, errors.New("PAYMENT_DECLINE_EVERY must be >= 0"))
	}
	if cfg.PaymentTimeout <= 0 {
		errs = append(errs, errors.New("PAYMENT_TIMEOUT must be positive"))
	}
	if cfg.GuestCartTTL <= 0 {
		errs = append(errs, errors.New("GUEST_CART_TTL must be positive"))
	}
	if cfg.JWTSecret == "" {
		if cfg.Env != "dev" {
			errs = append(errs, errors.New("JWT_SECRET is not set"))
		} else {
			cfg.JWTSecret = "dev-secret"
		}
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// InMemory reports whether the process runs without postgres.
func (c Config) InMemory() bool {
	return c.DatabaseURL == ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func intOr(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}
