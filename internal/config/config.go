package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string        `validate:"required"`
	StockAPIURL      string        `validate:"required,url"`
	StockTimeout     time.Duration `validate:"gt=0"`
	HTTPAddr         string        `validate:"required"`
	KafkaBrokers     []string      `validate:"dive,hostname_port"`
	KafkaTopic       string        `validate:"required"`
	Currency         string        `validate:"required,len=3,uppercase"`
	ApplyFilters     bool
	PriceSeed        *int64
	StockConcurrency int    `validate:"min=1,max=256"`
	LogLevel         string `validate:"oneof=debug info warn error"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv builds and validates a Config from environment variables only
func FromEnv() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("STOCK_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("STOCK_TIMEOUT: %w", err)
	}
	concurrency, err := strconv.Atoi(getEnv("STOCK_CONCURRENCY", "8"))
	if err != nil {
		return nil, fmt.Errorf("STOCK_CONCURRENCY: %w", err)
	}
	applyFilters, err := strconv.ParseBool(getEnv("CATALOG_APPLY_FILTERS", "false"))
	if err != nil {
		return nil, fmt.Errorf("CATALOG_APPLY_FILTERS: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", postgresURLFromEnv()),
		StockAPIURL:      getEnv("STOCK_API_URL", "http://localhost:8011"),
		StockTimeout:     timeout,
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "cart-events"),
		Currency:         strings.ToUpper(getEnv("CART_CURRENCY", "EUR")),
		ApplyFilters:     applyFilters,
		StockConcurrency: concurrency,
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if raw := os.Getenv("PRICE_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("PRICE_SEED: %w", err)
		}
		cfg.PriceSeed = &seed
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// KafkaEnabled reports whether cart events should be published
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// postgresURLFromEnv builds a DSN from the libpq PG* variables
func postgresURLFromEnv() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("PGUSER", "admin"), os.Getenv("PGPASSWORD")),
		Host:   net.JoinHostPort(getEnv("PGHOST", "localhost"), getEnv("PGPORT", "5432")),
		Path:   "/" + getEnv("PGDATABASE", "aidb"),
	}
	if mode := os.Getenv("PGSSLMODE"); mode != "" {
		u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	}
	return u.String()
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
