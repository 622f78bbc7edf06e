// Package lock реализует короткоживущую распределённую блокировку поверх
// разделяемого KV-хранилища. Захват неблокирующий: кто не успел — пробует
// позже, очереди ожидания нет.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const defaultTTL = 30 * time.Second

// Manager выдаёт блокировки с уникальным токеном владельца.
type Manager struct {
	store  domain.LockStore
	logger *log.Entry
}

// NewManager создаёт менеджер блокировок над переданным хранилищем.
func NewManager(store domain.LockStore, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.WithField("component", "lock")
	}
	return &Manager{store: store, logger: logger}
}

// Acquire пытается захватить блокировку по ключу. При успехе возвращает
// release и acquired=true; release снимает блокировку через
// compare-and-delete и потому безопасен, даже если TTL истёк и ключ успел
// перехватить другой владелец. При занятом ключе acquired=false — без
// ожидания и без ошибки.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	token := uuid.NewString()
	ok, err := m.store.TryAcquire(ctx, key, token, ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// Снятие — по отдельному контексту: блокировку надо вернуть, даже
		// если контекст операции уже отменён.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		owned, releaseErr := m.store.Release(releaseCtx, key, token)
		if releaseErr != nil {
			m.logger.WithError(releaseErr).WithField("key", key).Warn("failed to release lock")
			return
		}
		if !owned {
			// TTL истёк, ключ уже не наш — просто фиксируем факт.
			m.logger.WithField("key", key).Warn("lock was not owned at release time")
		}
	}

	return release, true, nil
}
