package app

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/config"
	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func memoryConfig() config.Config {
	return config.Config{
		StorageDriver:     config.StorageDriverMemory,
		ReturnWindowDays:  7,
		TaxRateBps:        1000,
		ShippingFlatMinor: 500,
		SettlementLockTTL: 30 * time.Second,
	}
}

func TestNewDependencies_MemoryGraph(t *testing.T) {
	deps, err := NewDependencies(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if deps.Orders == nil || deps.Returns == nil || deps.Ledger == nil ||
		deps.Inventory == nil || deps.Outbox == nil || deps.Settlement == nil ||
		deps.LockStore == nil {
		t.Fatal("expected all repositories to be initialized")
	}
	if deps.OrdersService == nil || deps.ReturnsService == nil || deps.Locks == nil {
		t.Fatal("expected services to be initialized")
	}
	if deps.Gateway == nil {
		t.Fatal("expected payment gateway to be initialized")
	}
	if deps.Notifier == nil {
		t.Fatal("expected log notifier without kafka")
	}
	if deps.Producer != nil {
		t.Fatal("expected no kafka producer without brokers")
	}
	if deps.Store != nil {
		t.Fatal("expected no postgres store for memory driver")
	}
}

func TestNewDependencies_MemoryGraphIsUsable(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, memoryConfig(), nil)
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	if err := deps.Inventory.Put(ctx, domain.ProductStock{ProductID: "prod-1", Size: domain.SizeM, Qty: 3}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	stocks, err := deps.Inventory.Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if len(stocks) != 1 || stocks[0].Qty != 3 {
		t.Fatalf("unexpected stock: %+v", stocks)
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "etcd"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestDependencies_CloseIsIdempotent(t *testing.T) {
	deps, err := NewDependencies(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}

	deps.Close()
	deps.Close()
}

func TestNewOutboxRelay_DisabledWithoutKafka(t *testing.T) {
	deps, err := NewDependencies(context.Background(), memoryConfig(), nil)
	if err != nil {
		t.Fatalf("new dependencies: %v", err)
	}
	defer deps.Close()

	relay := newOutboxRelay(deps, memoryConfig(), deps.Logger)
	if relay == nil {
		t.Fatal("expected relay worker instance")
	}

	// Без publisher-а Run завершается сразу, не зависая.
	done := make(chan struct{})
	go func() {
		relay.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay without publisher must exit immediately")
	}
}
