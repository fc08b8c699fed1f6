// Package config содержит логику чтения конфигурации витрины магазина.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации витрины магазина.
type Config struct {
	RunAddress string `env:"RUN_ADDRESS"`
	StaticDir  string `env:"STATIC_DIR"`

	APIURL               string `env:"API_URL"`
	ProductionHostSuffix string `env:"PRODUCTION_HOST_SUFFIX" envDefault:"railway.app"`
	ProductionAPIURL     string `env:"PRODUCTION_API_URL" envDefault:"https://serverchatbotibmec-production.up.railway.app"`
	DevAPIURL            string `env:"DEV_API_URL" envDefault:"http://localhost:3000"`
	PublicHost           string `env:"PUBLIC_HOST"`

	DatabaseURI   string        `env:"DATABASE_URI"`
	RedisURL      string        `env:"REDIS_URL"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionSecret string        `env:"SESSION_SECRET"`

	ChatReplyDelay time.Duration `env:"CHAT_REPLY_DELAY" envDefault:"1s"`

	RateLimit      float64  `env:"RATE_LIMIT" envDefault:"20"`
	RateBurst      int      `env:"RATE_BURST" envDefault:"40"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// TrustProxy включается, когда витрина работает за обратным прокси, выставляющим X-Forwarded-*.
	TrustProxy bool `env:"TRUST_PROXY"`
}

// Parse считывает конфигурацию из .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envAPIURL := cfg.APIURL
	envDatabaseURI := cfg.DatabaseURI
	envRedisURL := cfg.RedisURL
	envStaticDir := cfg.StaticDir

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.APIURL, "u", "", "store API base URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for session storage")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for session storage")
	flag.StringVar(&cfg.StaticDir, "s", "", "directory with the single-page application")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envAPIURL != "" {
		cfg.APIURL = envAPIURL
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}
	if envStaticDir != "" {
		cfg.StaticDir = envStaticDir
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ChatReplyDelay < 0 {
		return nil, fmt.Errorf("chat reply delay must not be negative: %s", cfg.ChatReplyDelay)
	}

	return cfg, nil
}
