package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "" {
		t.Error("postgres dsn must default to empty (in-memory mode)")
	}
	if cfg.KafkaTopic != "marketplace.order.events" {
		t.Errorf("unexpected kafka topic: %s", cfg.KafkaTopic)
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("unexpected outbox poll interval: %v", cfg.OutboxPollInterval)
	}
}

func TestReadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MARKET_HTTP_ADDR", ":18080")
	t.Setenv("MARKET_POSTGRES_DSN", "postgres://test")
	t.Setenv("MARKET_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("MARKET_REDIS_ADDR", "localhost:6379")
	t.Setenv("MARKET_REDIS_DB", "3")
	t.Setenv("MARKET_ADMIN_TOKEN", "secret")
	t.Setenv("MARKET_OUTBOX_POLL_INTERVAL", "250ms")

	cfg := ReadConfig()

	if cfg.HTTPAddr != ":18080" {
		t.Errorf("http addr not overridden: %s", cfg.HTTPAddr)
	}
	if cfg.PostgresDSN != "postgres://test" {
		t.Errorf("postgres dsn not overridden: %s", cfg.PostgresDSN)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Errorf("kafka brokers not parsed: %v", cfg.KafkaBrokers)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Errorf("redis config not parsed: %s db=%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.AdminToken != "secret" {
		t.Errorf("admin token not overridden: %s", cfg.AdminToken)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Errorf("outbox poll interval not parsed: %v", cfg.OutboxPollInterval)
	}
}

func TestReadConfig_IgnoresInvalidValues(t *testing.T) {
	t.Setenv("MARKET_REDIS_DB", "not-a-number")
	t.Setenv("MARKET_OUTBOX_POLL_INTERVAL", "-5s")

	cfg := ReadConfig()

	if cfg.RedisDB != 0 {
		t.Errorf("invalid redis db must keep default, got %d", cfg.RedisDB)
	}
	if cfg.OutboxPollInterval != time.Second {
		t.Errorf("invalid interval must keep default, got %v", cfg.OutboxPollInterval)
	}
}
