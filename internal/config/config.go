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
	AppEnv         string
	Port           string
	AllowedOrigins []string

	DatabaseURL string
	RedisURL    string
	Secret      string

	MeiliSearchHost string
	MeiliMasterKey  string

	// AdminJWTSecret enables the admin guard on destructive actions when set.
	AdminJWTSecret string

	RateLimitPost   time.Duration
	RateLimitThread time.Duration

	IPRateLimitRPS   float64
	IPRateLimitBurst int

	LegacyUpgrade bool
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://forum.db"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Secret:      os.Getenv("SECRET"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
	}

	if cfg.Secret == "" {
		return nil, errors.New("SECRET is required")
	}

	var err error
	cfg.RateLimitPost, err = time.ParseDuration(getEnv("RATE_LIMIT_POST", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_POST: %w", err)
	}
	cfg.RateLimitThread, err = time.ParseDuration(getEnv("RATE_LIMIT_THREAD", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_THREAD: %w", err)
	}
	cfg.IPRateLimitRPS, err = strconv.ParseFloat(getEnv("IP_RATE_LIMIT_RPS", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IP_RATE_LIMIT_RPS: %w", err)
	}
	cfg.IPRateLimitBurst, err = strconv.Atoi(getEnv("IP_RATE_LIMIT_BURST", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid IP_RATE_LIMIT_BURST: %w", err)
	}
	cfg.LegacyUpgrade, err = strconv.ParseBool(getEnv("LEGACY_UPGRADE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEGACY_UPGRADE: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
