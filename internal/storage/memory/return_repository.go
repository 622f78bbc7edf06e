package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// ReturnRepository — in-memory реализация ReturnRepository. Save повторяет
// транзакционную семантику Postgres-реализации: смена статуса, запись
// журнала и outbox-сообщение фиксируются в одной критической секции.
type ReturnRepository struct {
	mu     sync.RWMutex
	items  map[string]domain.ReturnRequest
	outbox *OutboxRepository
}

// NewReturnRepository возвращает in-memory репозиторий возвратов. outbox
// может быть nil, если transactional outbox в сценарии не участвует.
func NewReturnRepository(outbox *OutboxRepository) *ReturnRepository {
	return &ReturnRepository{
		items:  make(map[string]domain.ReturnRequest),
		outbox: outbox,
	}
}

// Create сохраняет новую заявку на возврат.
func (r *ReturnRepository) Create(_ context.Context, rr domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[rr.ID]; exists {
		return domain.ErrVersionConflict
	}

	r.items[rr.ID] = cloneReturn(rr)
	return nil
}

// Get возвращает заявку или ErrReturnNotFound.
func (r *ReturnRepository) Get(_ context.Context, id string) (domain.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rr, ok := r.items[id]
	if !ok {
		return domain.ReturnRequest{}, domain.ErrReturnNotFound
	}
	return cloneReturn(rr), nil
}

// ListByUser возвращает заявки пользователя, свежие первыми.
func (r *ReturnRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ReturnRequest, 0, len(r.items))
	for _, rr := range r.items {
		if rr.UserID != userID {
			continue
		}
		result = append(result, cloneReturn(rr))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает заявку с проверкой версии, добавляет запись журнала и,
// если передано сообщение, кладёт его в outbox. Все три эффекта видны извне
// только вместе.
func (r *ReturnRepository) Save(ctx context.Context, rr domain.ReturnRequest, entry domain.HistoryEntry, outbox *domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[rr.ID]
	if !ok {
		return domain.ErrReturnNotFound
	}
	if current.Version != rr.Version {
		return domain.ErrVersionConflict
	}

	if outbox != nil {
		if r.outbox == nil {
			return domain.ErrOutboxPublish
		}
		if _, err := r.outbox.Enqueue(ctx, *outbox); err != nil {
			return err
		}
	}

	rr.History = append(append([]domain.HistoryEntry{}, rr.History...), entry)
	rr.Version++
	r.items[rr.ID] = cloneReturn(rr)
	return nil
}

func cloneReturn(rr domain.ReturnRequest) domain.ReturnRequest {
	clone := rr
	clone.Items = append([]domain.ReturnItem{}, rr.Items...)
	clone.History = append([]domain.HistoryEntry{}, rr.History...)
	return clone
}

var _ domain.ReturnRepository = (*ReturnRepository)(nil)
