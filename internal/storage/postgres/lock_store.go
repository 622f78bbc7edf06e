package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type lockStore struct {
	db *sql.DB
}

// NewLockStore создаёт PostgreSQL-реализацию LockStore поверх таблицы
// dist_locks. Захват — одно атомарное выражение: вставка либо перехват
// записи с истёкшим TTL.
func NewLockStore(store *Store) domain.LockStore {
	return &lockStore{db: store.DB()}
}

func (s *lockStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// ON CONFLICT с условием expires_at <= now(): живую блокировку перехватить
	// нельзя, просроченную забирает первый претендент.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dist_locks (key, token, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 millisecond')
		ON CONFLICT (key) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at
		WHERE dist_locks.expires_at <= NOW()
	`, key, token, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock rows affected: %w", err)
	}

	return affected == 1, nil
}

func (s *lockStore) Release(ctx context.Context, key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Compare-and-delete: чужой или перехваченный после истечения TTL токен
	// запись не трогает.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dist_locks
		WHERE key = $1
		  AND token = $2
	`, key, token)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock rows affected: %w", err)
	}

	return affected == 1, nil
}

func (s *lockStore) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// LIMIT у DELETE в Postgres нет, порция выбирается подзапросом по ключам.
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dist_locks
		WHERE key IN (
			SELECT key FROM dist_locks
			WHERE expires_at <= $1
			LIMIT $2
		)
	`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired locks: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired locks rows affected: %w", err)
	}

	return int(affected), nil
}

var _ domain.LockStore = (*lockStore)(nil)
