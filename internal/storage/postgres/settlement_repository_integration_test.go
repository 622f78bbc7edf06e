package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func seedSettlementFixture(t *testing.T, store *Store) domain.SettlementJob {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seedIntegrationStock(t, store, "prod-1", domain.SizeM, 10)

	order := integrationOrder()
	delivered := time.Now().UTC().Truncate(time.Microsecond).Add(-48 * time.Hour)
	order.Status = domain.OrderStatusDelivered
	order.DeliveredAt = &delivered
	if err := NewOrderRepository(store).Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	rr := domain.ReturnRequest{
		ID:      "return-1",
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  domain.ReturnStatusQCPassed,
		Items: []domain.ReturnItem{
			{OrderItemID: "item-1", ProductID: "prod-1", Qty: 2, Reason: "wrong size"},
		},
		RefundMinor: 5000,
		History: []domain.HistoryEntry{
			{Status: string(domain.ReturnStatusQCPassed), Actor: "qc-operator", Occurred: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := NewReturnRepository(store).Create(ctx, rr); err != nil {
		t.Fatalf("create return: %v", err)
	}

	return domain.SettlementJob{
		ReturnRequestID: rr.ID,
		OrderID:         order.ID,
		UserID:          order.UserID,
		RefundMinor:     rr.RefundMinor,
	}
}

func TestSettlementRepository_PostgresSettle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	job := seedSettlementFixture(t, store)
	repo := NewSettlementRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	tx, err := repo.Settle(ctx, job, func(context.Context) (string, error) {
		return "gw-ref-1", nil
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.GatewayRef != "gw-ref-1" || tx.AmountMinor != 5000 {
		t.Fatalf("unexpected ledger entry: %+v", tx)
	}

	rr, err := NewReturnRepository(store).Get(ctx, job.ReturnRequestID)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if rr.Status != domain.ReturnStatusRefunded {
		t.Fatalf("expected refunded, got %s", rr.Status)
	}

	// Заказ списал 2 при создании, расчёт вернул 2: остаток снова 10.
	stocks, err := NewInventoryRepository(store).Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stocks[0].Qty != 10 {
		t.Fatalf("expected stock restored to 10, got %d", stocks[0].Qty)
	}

	order, err := NewOrderRepository(store).Get(ctx, job.OrderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(order.History) != 2 {
		t.Fatalf("expected audit entry on order, got %d entries", len(order.History))
	}
}

func TestSettlementRepository_PostgresSecondSettleRejected(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	job := seedSettlementFixture(t, store)
	repo := NewSettlementRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if _, err := repo.Settle(ctx, job, func(context.Context) (string, error) {
		return "gw-ref-1", nil
	}); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	payCalled := false
	_, err := repo.Settle(ctx, job, func(context.Context) (string, error) {
		payCalled = true
		return "gw-ref-2", nil
	})
	if !errors.Is(err, domain.ErrDuplicateRefund) {
		t.Fatalf("expected duplicate refund, got %v", err)
	}
	if payCalled {
		t.Fatal("payment must not be charged twice")
	}

	txs, err := NewLedgerRepository(store).ListByRef(ctx, domain.LedgerRef{Kind: domain.RefKindReturn, ID: job.ReturnRequestID})
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(txs))
	}
}

func TestSettlementRepository_PostgresPaymentFailureRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	job := seedSettlementFixture(t, store)
	repo := NewSettlementRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	_, err := repo.Settle(ctx, job, func(context.Context) (string, error) {
		return "", domain.ErrExternalFailure
	})
	if !errors.Is(err, domain.ErrExternalFailure) {
		t.Fatalf("expected payment error, got %v", err)
	}

	rr, err := NewReturnRepository(store).Get(ctx, job.ReturnRequestID)
	if err != nil {
		t.Fatalf("get return: %v", err)
	}
	if rr.Status != domain.ReturnStatusQCPassed {
		t.Fatalf("expected status unchanged, got %s", rr.Status)
	}
	if _, err := NewLedgerRepository(store).FindSuccessfulRefund(ctx, job.ReturnRequestID); !errors.Is(err, domain.ErrLedgerEntryNotFound) {
		t.Fatalf("expected no ledger entry, got %v", err)
	}
	stocks, err := NewInventoryRepository(store).Get(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if stocks[0].Qty != 8 {
		t.Fatalf("expected stock unchanged at 8, got %d", stocks[0].Qty)
	}
}
