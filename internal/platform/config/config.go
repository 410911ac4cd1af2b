// Package config builds runtime configuration from the environment so main
// stays lean. A .env file is honored in development when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures all process-level settings.
type Config struct {
	Addr string
	Env  string

	// AdminToken is the shared secret for the review backend. Empty means
	// admin endpoints fail closed.
	AdminToken string

	// SessionSigningKey signs the sponsor session cookie.
	SessionSigningKey string
	SessionTTL        time.Duration

	// RequestCooldown is the minimum gap between update requests from one
	// sponsorship.
	RequestCooldown time.Duration

	DatabaseURL string
	Redis       RedisConfig

	RateLimit RateLimitConfig

	// OverdueAfter marks a child as overdue for an update when the latest
	// published update is older than this. OverdueSchedule is a cron spec.
	OverdueAfter    time.Duration
	OverdueSchedule string
}

// RedisConfig configures the optional Redis-backed rate limit store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig holds per-endpoint-class thresholds over a shared window.
type RateLimitConfig struct {
	Window     time.Duration
	Login      int
	Checkout   int
	Submission int
	Disabled   bool
}

// FromEnv reads configuration from the environment, applying development
// defaults for everything except secrets.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Addr:              getenv("SPONSORLINK_ADDR", ":8080"),
		Env:               getenv("SPONSORLINK_ENV", "development"),
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		SessionSigningKey: getenv("SESSION_SIGNING_KEY", "dev-secret-change-in-production"),
		SessionTTL:        getDuration("SESSION_TTL", 30*24*time.Hour),
		RequestCooldown:   getDuration("REQUEST_COOLDOWN", 30*24*time.Hour),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Window:     getDuration("RATE_LIMIT_WINDOW", time.Minute),
			Login:      getInt("RATE_LIMIT_LOGIN", 10),
			Checkout:   getInt("RATE_LIMIT_CHECKOUT", 20),
			Submission: getInt("RATE_LIMIT_SUBMISSION", 30),
			Disabled:   os.Getenv("RATE_LIMIT_DISABLED") == "true",
		},
		OverdueAfter:    getDuration("OVERDUE_AFTER", 90*24*time.Hour),
		OverdueSchedule: getenv("OVERDUE_SCHEDULE", "0 6 * * *"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
