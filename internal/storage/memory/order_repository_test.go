package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func newOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: domain.OrderStatusProcessing,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "prod-1", Size: domain.SizeM, Qty: 2, PriceMinor: 2500, CreatedAt: now},
		},
		ItemsMinor:    5000,
		TaxMinor:      500,
		ShippingMinor: 300,
		TotalMinor:    5800,
		PaymentRef:    "pay-1",
		History: []domain.HistoryEntry{
			{Status: string(domain.OrderStatusProcessing), Actor: "user-1", Occurred: now},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func seedStock(t *testing.T, inv *memory.InventoryRepository, productID, size string, qty int32) {
	t.Helper()
	if err := inv.Put(context.Background(), domain.ProductStock{ProductID: productID, Size: size, Qty: qty}); err != nil {
		t.Fatalf("seed stock failed: %v", err)
	}
}

func stockQty(t *testing.T, inv *memory.InventoryRepository, productID, size string) int32 {
	t.Helper()
	stocks, err := inv.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get stock failed: %v", err)
	}
	for _, s := range stocks {
		if s.Size == size {
			return s.Qty
		}
	}
	t.Fatalf("size %s not found for product %s", size, productID)
	return 0
}

func TestOrderRepository_CreateDebitsStock(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventoryRepository()
	repo := memory.NewOrderRepository(inv)

	seedStock(t, inv, "prod-1", domain.SizeM, 5)

	order := newOrder()
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if qty := stockQty(t, inv, "prod-1", domain.SizeM); qty != 3 {
		t.Fatalf("expected remaining stock 3, got %d", qty)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}
}

func TestOrderRepository_CreateConflictRollsBack(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventoryRepository()
	repo := memory.NewOrderRepository(inv)

	seedStock(t, inv, "prod-1", domain.SizeM, 5)
	seedStock(t, inv, "prod-2", domain.SizeL, 1)

	order := newOrder()
	order.Items = append(order.Items, domain.OrderItem{
		ID: "item-2", ProductID: "prod-2", Size: domain.SizeL, Qty: 3, PriceMinor: 1000,
	})
	order.ItemsMinor = 8000
	order.TotalMinor = 8800

	err := repo.Create(ctx, order)
	if !errors.Is(err, domain.ErrStockConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}

	var conflict *domain.StockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *StockConflictError, got %T", err)
	}
	if conflict.ProductID != "prod-2" {
		t.Fatalf("expected conflict on prod-2, got %s", conflict.ProductID)
	}

	// Первая позиция была списана до конфликта — проверяем компенсацию.
	if qty := stockQty(t, inv, "prod-1", domain.SizeM); qty != 5 {
		t.Fatalf("expected stock restored to 5, got %d", qty)
	}
	if _, err := repo.Get(ctx, order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order absent after conflict, got %v", err)
	}
}

func TestOrderRepository_ConcurrentCreateNoOversell(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventoryRepository()
	repo := memory.NewOrderRepository(inv)

	seedStock(t, inv, "prod-1", domain.SizeM, 10)

	const workers = 20
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			order := newOrder()
			order.ID = order.ID + "-" + string(rune('a'+n))
			errs[n] = repo.Create(ctx, order)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrStockConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Остатка 10, каждый заказ берёт 2: ровно 5 побед, ни единицы ниже нуля.
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful orders, got %d", succeeded)
	}
	if qty := stockQty(t, inv, "prod-1", domain.SizeM); qty != 0 {
		t.Fatalf("expected stock drained to 0, got %d", qty)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	inv := memory.NewInventoryRepository()
	repo := memory.NewOrderRepository(inv)

	seedStock(t, inv, "prod-1", domain.SizeM, 5)
	order := newOrder()
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	entry := domain.HistoryEntry{Status: string(domain.OrderStatusConfirmed), Actor: "ops", Occurred: time.Now().UTC()}
	order.Status = domain.OrderStatusConfirmed
	if err := repo.Save(ctx, order, entry); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Повторное сохранение с устаревшей версией должно быть отвергнуто.
	if err := repo.Save(ctx, order, entry); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}
	if len(stored.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(stored.History))
	}
}
