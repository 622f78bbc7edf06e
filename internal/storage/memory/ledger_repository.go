package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// LedgerRepository — in-memory реализация леджера. Записи append-only;
// уникальность успешного refund на возврат обеспечивается проверкой перед
// вставкой под общим мьютексом.
type LedgerRepository struct {
	mu      sync.RWMutex
	entries []domain.Transaction
}

// NewLedgerRepository возвращает пустой in-memory леджер.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

// Append добавляет запись. Вторая успешная refund-запись по одному возврату
// отклоняется с ErrDuplicateRefund — аналог частичного уникального индекса
// Postgres-реализации.
func (r *LedgerRepository) Append(_ context.Context, tx domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.appendLocked(tx)
}

func (r *LedgerRepository) appendLocked(tx domain.Transaction) error {
	if errs := tx.Validate(); len(errs) > 0 {
		return errs[0]
	}

	if tx.Type == domain.TransactionTypeRefund && tx.Status == domain.TransactionStatusSuccess {
		for _, existing := range r.entries {
			if existing.Type == domain.TransactionTypeRefund &&
				existing.Status == domain.TransactionStatusSuccess &&
				existing.Ref == tx.Ref {
				return domain.ErrDuplicateRefund
			}
		}
	}

	r.entries = append(r.entries, tx)
	return nil
}

// FindSuccessfulRefund ищет успешную refund-запись по возврату.
func (r *LedgerRepository) FindSuccessfulRefund(_ context.Context, returnID string) (domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref := domain.LedgerRef{Kind: domain.RefKindReturn, ID: returnID}
	for _, tx := range r.entries {
		if tx.Type == domain.TransactionTypeRefund &&
			tx.Status == domain.TransactionStatusSuccess &&
			tx.Ref == ref {
			return tx, nil
		}
	}

	return domain.Transaction{}, domain.ErrLedgerEntryNotFound
}

// ListByRef возвращает записи по ссылке, старые первыми.
func (r *LedgerRepository) ListByRef(_ context.Context, ref domain.LedgerRef) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Transaction, 0)
	for _, tx := range r.entries {
		if tx.Ref == ref {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })

	return result, nil
}

var _ domain.LedgerRepository = (*LedgerRepository)(nil)
