package app

import (
	"os"
	"strconv"
	"time"

	"github.com/jsgaviriam/checkout/internal/gateway/wompi"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пусто — Kafka отключён.
	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending — порог backlog, после которого readiness деградирует.
	OutboxMaxPending int
	// OutboxMaxAge — возраст самого старого pending-события, после которого
	// backlog считается застрявшим.
	OutboxMaxAge time.Duration

	WebhookLedgerRetention        time.Duration
	WebhookLedgerCleanupInterval  time.Duration
	WebhookLedgerCleanupBatchSize int

	Wompi wompi.Config
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     20,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    200 * time.Millisecond,
		OutboxMaxPending:    100,
		OutboxMaxAge:        time.Minute,

		WebhookLedgerRetention:        24 * time.Hour,
		WebhookLedgerCleanupInterval:  10 * time.Minute,
		WebhookLedgerCleanupBatchSize: 500,
	}
}

// LoadConfig читает конфигурацию из окружения поверх DefaultConfig.
// Отсутствующие переменные оставляют значения по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envOr("CHECKOUT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envOr("CHECKOUT_METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = envOr("CHECKOUT_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envOr("CHECKOUT_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("CHECKOUT_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.KafkaBrokers = envOr("KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.OutboxPollInterval = envDuration("CHECKOUT_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("CHECKOUT_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("CHECKOUT_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("CHECKOUT_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.OutboxMaxPending = envInt("CHECKOUT_OUTBOX_MAX_PENDING", cfg.OutboxMaxPending)
	cfg.OutboxMaxAge = envDuration("CHECKOUT_OUTBOX_MAX_AGE", cfg.OutboxMaxAge)

	cfg.WebhookLedgerRetention = envDuration("CHECKOUT_WEBHOOK_LEDGER_RETENTION", cfg.WebhookLedgerRetention)
	cfg.WebhookLedgerCleanupInterval = envDuration("CHECKOUT_WEBHOOK_LEDGER_CLEANUP_INTERVAL", cfg.WebhookLedgerCleanupInterval)
	cfg.WebhookLedgerCleanupBatchSize = envInt("CHECKOUT_WEBHOOK_LEDGER_CLEANUP_BATCH_SIZE", cfg.WebhookLedgerCleanupBatchSize)

	cfg.Wompi = wompi.Config{
		BaseURL:      envOr("WOMPI_BASE_URL", "https://api-sandbox.co.uat.wompi.dev/v1"),
		PublicKey:    os.Getenv("WOMPI_PUBLIC_KEY"),
		PrivateKey:   os.Getenv("WOMPI_PRIVATE_KEY"),
		IntegrityKey: os.Getenv("WOMPI_INTEGRITY_KEY"),
		EventsKey:    os.Getenv("WOMPI_EVENTS_KEY"),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
