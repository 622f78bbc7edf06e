package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type outboxStatus string

const (
	outboxStatusPending outboxStatus = "pending"
	outboxStatusSent    outboxStatus = "sent"
	outboxStatusFailed  outboxStatus = "failed"
)

type outboxRecord struct {
	msg       domain.OutboxMessage
	status    outboxStatus
	attempts  int
	createdAt time.Time
}

// OutboxRepository — in-memory реализация transactional outbox для тестов.
type OutboxRepository struct {
	mu      sync.Mutex
	records []*outboxRecord
	byID    map[string]*outboxRecord
}

// NewOutboxRepository возвращает пустой in-memory outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{byID: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет сообщение в статусе pending, присваивая id при отсутствии.
func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	record := &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: time.Now().UTC(),
	}
	r.records = append(r.records, record)
	r.byID[msg.ID] = record

	return msg, nil
}

// PullPending возвращает до limit pending-сообщений в порядке создания.
func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]domain.OutboxMessage, 0, limit)
	for _, record := range r.records {
		if record.status != outboxStatusPending {
			continue
		}
		result = append(result, record.msg)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.OutboxStats
	for _, record := range r.records {
		if record.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || record.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = record.createdAt
		}
	}

	return stats, nil
}

// MarkSent помечает сообщение отправленным.
func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed помечает сообщение неотправленным; счётчик попыток растёт.
func (r *OutboxRepository) MarkFailed(_ context.Context, id string) error {
	return r.mark(id, outboxStatusFailed)
}

func (r *OutboxRepository) mark(id string, status outboxStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attempts++
	return nil
}

// AllPending — вспомогательный метод для тестов: все pending-сообщения без лимита.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	msgs, _ := r.PullPending(context.Background(), 0)
	return msgs
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
