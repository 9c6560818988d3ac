// Package config assembles the immutable runtime configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is constructed once at startup and passed by reference; nothing
// mutates it afterwards.
type Config struct {
	HTTPAddr string

	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MediaDir     string
	MediaBaseURL string

	CallTimeout time.Duration
	CacheTTL    time.Duration

	CaptchaVerifyURL string
	CaptchaSecret    string
}

// Load reads the environment, first merging a .env file when present.
// Missing keys fall back to development defaults.
func Load() (Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:         envOr("FORMFLOW_HTTP_ADDR", ":8080"),
		DatabaseDriver:   envOr("FORMFLOW_DB_DRIVER", "sqlite"),
		DatabaseDSN:      envOr("FORMFLOW_DB_DSN", "formflow.db"),
		RedisAddr:        os.Getenv("FORMFLOW_REDIS_ADDR"),
		RedisPassword:    os.Getenv("FORMFLOW_REDIS_PASSWORD"),
		MediaDir:         envOr("FORMFLOW_MEDIA_DIR", "media"),
		MediaBaseURL:     envOr("FORMFLOW_MEDIA_BASE_URL", "/media"),
		CaptchaVerifyURL: os.Getenv("FORMFLOW_CAPTCHA_VERIFY_URL"),
		CaptchaSecret:    os.Getenv("FORMFLOW_CAPTCHA_SECRET"),
	}

	var err error
	if cfg.RedisDB, err = envInt("FORMFLOW_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.CallTimeout, err = envDuration("FORMFLOW_CALL_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = envDuration("FORMFLOW_CACHE_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
