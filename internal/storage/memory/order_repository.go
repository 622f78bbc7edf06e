package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// OrderRepository — in-memory реализация OrderRepository. Резервирование
// стока при создании заказа выполняется по принципу "всё или ничего":
// конфликт по любой позиции компенсирует уже выполненные списания.
type OrderRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Order
	inv   *InventoryRepository
}

// NewOrderRepository возвращает in-memory репозиторий поверх леджера остатков.
func NewOrderRepository(inv *InventoryRepository) *OrderRepository {
	return &OrderRepository{
		items: make(map[string]domain.Order),
		inv:   inv,
	}
}

// Create резервирует сток по всем позициям и сохраняет заказ. При конфликте
// ни одна позиция не остаётся списанной и заказ не создаётся.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrVersionConflict
	}

	r.inv.mu.Lock()
	defer r.inv.mu.Unlock()

	debited := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if err := r.inv.adjustLocked(item.ProductID, item.Size, -item.Qty); err != nil {
			// Компенсируем уже выполненные списания и откатываемся целиком.
			for _, done := range debited {
				_ = r.inv.adjustLocked(done.ProductID, done.Size, done.Qty)
			}
			return err
		}
		debited = append(debited, item)
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByUser возвращает заказы пользователя, ограничивая выборку limit (если >0).
func (r *OrderRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
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

// Save перезаписывает заказ с проверкой версии и добавляет запись журнала.
func (r *OrderRepository) Save(_ context.Context, order domain.Order, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}

	order.History = append(append([]domain.HistoryEntry{}, order.History...), entry)
	order.Version++
	r.items[order.ID] = cloneOrder(order)
	return nil
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.OrderItem{}, order.Items...)
	clone.History = append([]domain.HistoryEntry{}, order.History...)
	if order.DeliveredAt != nil {
		delivered := *order.DeliveredAt
		clone.DeliveredAt = &delivered
	}
	return clone
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
