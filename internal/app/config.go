package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config описывает настройки запуска приложения. Значения читаются один раз
// в main из окружения MARKET_*; глобального мутируемого объекта настроек нет.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	// PostgresDSN пустой — работаем на in-memory хранилище (dev/demo режим).
	PostgresDSN string

	// KafkaBrokers пустой — события остаются в outbox без публикации.
	KafkaBrokers []string
	KafkaTopic   string

	// RedisAddr пустой — кэш статусов заказов отключён.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WebhookSecret string
	AdminToken    string

	OutboxPollInterval time.Duration
	DedupCleanupEvery  time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		KafkaTopic:         "marketplace.order.events",
		WebhookSecret:      "whsec_dev",
		OutboxPollInterval: time.Second,
		DedupCleanupEvery:  10 * time.Minute,
	}
}

// ReadConfig строит конфигурацию из окружения поверх значений по умолчанию.
func ReadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("MARKET_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MARKET_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("MARKET_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("MARKET_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("MARKET_KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := os.Getenv("MARKET_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("MARKET_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MARKET_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			cfg.RedisDB = db
		}
	}
	if v := os.Getenv("MARKET_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("MARKET_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("MARKET_OUTBOX_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboxPollInterval = d
		}
	}
	if v := os.Getenv("MARKET_DEDUP_CLEANUP_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DedupCleanupEvery = d
		}
	}

	return cfg
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
