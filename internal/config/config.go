// Package config reads the server configuration from the environment. A
// .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	LogLevel    slog.Level

	JWTSecret  string
	SessionTTL time.Duration
	// LoginRatePerMinute bounds login attempts per username.
	LoginRatePerMinute int

	AdminUsername     string
	AdminPasswordHash string
	DevUsername       string
	DevPasswordHash   string
	// ChallengeHash is the "salt$hash" of the secondary password asked
	// before destructive actions.
	ChallengeHash string

	RedisAddr     string
	RedisPassword string

	OTLPEndpoint string
	ServiceName  string
	Location     *time.Location
}

// Load reads the configuration. It fails when a value is malformed or a
// required secret is missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from lookup.
func FromEnv(lookup func(string) string) (*Config, error) {
	getEnv := func(key, defaultValue string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return defaultValue
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		DevUsername:       getEnv("DEV_USERNAME", "dev"),
		DevPasswordHash:   getEnv("DEV_PASSWORD_HASH", ""),
		ChallengeHash:     getEnv("CHALLENGE_HASH", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       getEnv("SERVICE_NAME", "atlasgym"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "12h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("SESSION_TTL %q: must be a positive duration", getEnv("SESSION_TTL", ""))
	}
	cfg.SessionTTL = ttl

	rate, err := strconv.Atoi(getEnv("LOGIN_RATE_PER_MINUTE", "5"))
	if err != nil || rate <= 0 {
		return nil, fmt.Errorf("LOGIN_RATE_PER_MINUTE %q: must be a positive integer", getEnv("LOGIN_RATE_PER_MINUTE", ""))
	}
	cfg.LoginRatePerMinute = rate

	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.ChallengeHash == "" {
		return nil, errors.New("CHALLENGE_HASH is required; generate one with hashpw")
	}
	return cfg, nil
}
