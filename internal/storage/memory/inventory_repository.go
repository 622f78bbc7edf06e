package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// InventoryRepository — in-memory леджер остатков для тестов и локальной
// разработки. Семантика повторяет условную запись Postgres-реализации:
// списание атомарно проверяет остаток под мьютексом.
type InventoryRepository struct {
	mu  sync.Mutex
	qty map[string]map[string]int32 // productID -> size -> qty
}

// NewInventoryRepository возвращает пустой in-memory леджер остатков.
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{qty: make(map[string]map[string]int32)}
}

// Adjust меняет остаток варианта. Для отрицательной delta проверка и
// списание выполняются как одна операция: при нехватке остатка ничего не
// меняется и возвращается *StockConflictError.
func (r *InventoryRepository) Adjust(_ context.Context, productID, size string, delta int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.adjustLocked(productID, size, delta)
}

// adjustLocked — общая часть для Adjust и компенсаций Create: вызывается
// только под r.mu.
func (r *InventoryRepository) adjustLocked(productID, size string, delta int32) error {
	sizes, ok := r.qty[productID]
	if !ok {
		if delta < 0 {
			return &domain.StockConflictError{ProductID: productID, Size: size, Requested: -delta}
		}
		sizes = make(map[string]int32)
		r.qty[productID] = sizes
	}

	current := sizes[size]
	if delta < 0 && current < -delta {
		return &domain.StockConflictError{ProductID: productID, Size: size, Requested: -delta}
	}
	sizes[size] = current + delta
	return nil
}

// Get возвращает остатки всех размеров товара, отсортированные по размеру.
func (r *InventoryRepository) Get(_ context.Context, productID string) ([]domain.ProductStock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes, ok := r.qty[productID]
	if !ok {
		return nil, domain.ErrStockNotFound
	}

	result := make([]domain.ProductStock, 0, len(sizes))
	for size, qty := range sizes {
		result = append(result, domain.ProductStock{ProductID: productID, Size: size, Qty: qty})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Size < result[j].Size })

	return result, nil
}

// Put заводит или перезаписывает остаток варианта.
func (r *InventoryRepository) Put(_ context.Context, stock domain.ProductStock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sizes, ok := r.qty[stock.ProductID]
	if !ok {
		sizes = make(map[string]int32)
		r.qty[stock.ProductID] = sizes
	}
	sizes[stock.Size] = stock.Qty
	return nil
}

var _ domain.InventoryRepository = (*InventoryRepository)(nil)
