package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type lockRecord struct {
	token     string
	expiresAt time.Time
}

// LockStore — in-memory хранилище взаимоисключающих блокировок. TTL
// защищает от вечного удержания упавшим владельцем: истёкшую запись
// перехватывает следующий претендент.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]lockRecord
	now   func() time.Time
}

// NewLockStore возвращает пустое in-memory хранилище блокировок.
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]lockRecord),
		now:   time.Now,
	}
}

// TryAcquire пытается захватить блокировку без ожидания. Возвращает false,
// если блокировка удерживается другим живым владельцем.
func (s *LockStore) TryAcquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if current, ok := s.locks[key]; ok && current.expiresAt.After(now) {
		return false, nil
	}

	s.locks[key] = lockRecord{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

// Release снимает блокировку по принципу compare-and-delete: чужой токен
// запись не трогает. Возвращает true, если запись принадлежала вызывающему.
func (s *LockStore) Release(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.locks[key]
	if !ok || current.token != token {
		return false, nil
	}

	delete(s.locks, key)
	return true, nil
}

// DeleteExpired удаляет записи, истёкшие к моменту before.
func (s *LockStore) DeleteExpired(_ context.Context, before time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, record := range s.locks {
		if limit > 0 && deleted >= limit {
			break
		}
		if !record.expiresAt.After(before) {
			delete(s.locks, key)
			deleted++
		}
	}
	return deleted, nil
}

var _ domain.LockStore = (*LockStore)(nil)
