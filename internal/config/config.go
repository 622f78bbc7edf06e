// Package config загружает настройки приложения из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки процессов системы: API-сервера и воркера
// расчёта возмещений. Все значения читаются из окружения с разумными
// значениями по умолчанию для локального запуска.
type Config struct {
	HTTPAddr    string `env:"FMS_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"FMS_METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"FMS_LOG_LEVEL" envDefault:"info"`

	StorageDriver       string `env:"FMS_STORAGE_DRIVER" envDefault:"memory"`
	PostgresDSN         string `env:"FMS_POSTGRES_DSN"`
	PostgresAutoMigrate bool   `env:"FMS_POSTGRES_AUTO_MIGRATE" envDefault:"true"`

	KafkaBrokers       []string      `env:"FMS_KAFKA_BROKERS" envSeparator:","`
	SettlementGroupID  string        `env:"FMS_SETTLEMENT_GROUP_ID" envDefault:"fms-settlement"`
	SettlementLockTTL  time.Duration `env:"FMS_SETTLEMENT_LOCK_TTL" envDefault:"30s"`
	ConsumerMaxRetries int           `env:"FMS_CONSUMER_MAX_RETRIES" envDefault:"3"`

	ReturnWindowDays  int   `env:"FMS_RETURN_WINDOW_DAYS" envDefault:"7"`
	TaxRateBps        int64 `env:"FMS_TAX_RATE_BPS" envDefault:"1000"`
	ShippingFlatMinor int64 `env:"FMS_SHIPPING_FLAT_MINOR" envDefault:"500"`

	OutboxPollInterval time.Duration `env:"FMS_OUTBOX_POLL_INTERVAL" envDefault:"1s"`
	OutboxBatchSize    int           `env:"FMS_OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxAttempts  int           `env:"FMS_OUTBOX_MAX_ATTEMPTS" envDefault:"3"`
	OutboxRetryDelay   time.Duration `env:"FMS_OUTBOX_RETRY_DELAY" envDefault:"50ms"`

	BreakerMaxFailures int           `env:"FMS_BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerCooldown    time.Duration `env:"FMS_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Load читает конфигурацию из окружения и валидирует её.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("FMS_POSTGRES_DSN is required for postgres storage driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	if c.ReturnWindowDays <= 0 {
		return fmt.Errorf("return window must be positive, got %d", c.ReturnWindowDays)
	}
	if c.TaxRateBps < 0 {
		return fmt.Errorf("tax rate must be non-negative, got %d", c.TaxRateBps)
	}
	if c.ShippingFlatMinor < 0 {
		return fmt.Errorf("shipping cost must be non-negative, got %d", c.ShippingFlatMinor)
	}
	if c.SettlementLockTTL <= 0 {
		return fmt.Errorf("settlement lock ttl must be positive, got %s", c.SettlementLockTTL)
	}

	return nil
}

// KafkaEnabled сообщает, настроен ли брокер.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
