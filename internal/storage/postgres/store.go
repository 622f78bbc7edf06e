// Package postgres — слой хранения поверх PostgreSQL: подключение с пулом,
// встроенные миграции схемы и репозитории склада, заказов, возвратов,
// ledger-а, outbox и блокировок.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// settings — параметры подключения. Дефолты рассчитаны на один инстанс
// сервиса рядом с небольшим пулом Postgres.
type settings struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
	pingTimeout     time.Duration
}

func defaultSettings() settings {
	return settings{
		maxOpenConns:    25,
		maxIdleConns:    25,
		connMaxLifetime: 30 * time.Minute,
		connMaxIdleTime: 5 * time.Minute,
		pingTimeout:     5 * time.Second,
	}
}

// Option настраивает подключение при Open.
type Option func(*settings)

// WithPoolSize задаёт размер пула соединений.
func WithPoolSize(open, idle int) Option {
	return func(s *settings) {
		s.maxOpenConns = open
		s.maxIdleConns = idle
	}
}

// WithPingTimeout задаёт таймаут проверок доступности базы.
func WithPingTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.pingTimeout = timeout
	}
}

// Store держит SQL-подключение к PostgreSQL и применяет миграции схемы.
type Store struct {
	db          *sql.DB
	pingTimeout time.Duration
}

// Open подключается к PostgreSQL через драйвер pgx, настраивает пул и
// проверяет доступность базы одним ping-ом.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db, pingTimeout: cfg.pingTimeout}, nil
}

// DB отдаёт raw *sql.DB для репозиториев и интеграционных тестов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы. Используется health-чеками, поэтому
// безопасен на nil-получателе.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema доводит схему до актуальной версии: применяет все
// недостающие up-миграции. Вызывается при старте сервиса.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
