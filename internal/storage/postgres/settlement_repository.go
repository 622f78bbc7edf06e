package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// settlementTimeout длиннее opTimeout: внутри транзакции выполняется вызов
// платёжного шлюза.
const settlementTimeout = 15 * time.Second

type settlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository создаёт PostgreSQL-реализацию SettlementRepository.
func NewSettlementRepository(store *Store) domain.SettlementRepository {
	return &settlementRepository{db: store.DB()}
}

// Settle проводит расчёт возмещения одной транзакцией: строка заявки
// блокируется FOR UPDATE, выплата выполняется через pay, затем фиксируются
// статус refunded, refund-запись леджера, журнал заказа и возврат стока.
// Любая ошибка, включая отказ шлюза, откатывает транзакцию целиком.
func (r *settlementRepository) Settle(ctx context.Context, job domain.SettlementJob, pay domain.PaymentCharge) (domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, settlementTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("begin settlement tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rr, err := lockReturnForSettlement(ctx, tx, job.ReturnRequestID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if !rr.Status.Settleable() {
		if rr.Status == domain.ReturnStatusRefunded {
			err = domain.ErrDuplicateRefund
			return domain.Transaction{}, err
		}
		err = fmt.Errorf("settle return %s from status %s: %w", rr.ID, rr.Status, domain.ErrInvalidTransition)
		return domain.Transaction{}, err
	}

	if rr.Items, err = loadReturnItems(ctx, tx, rr.ID); err != nil {
		return domain.Transaction{}, err
	}

	orderItems, err := loadOrderItems(ctx, tx, rr.OrderID)
	if err != nil {
		return domain.Transaction{}, err
	}
	itemsByID := make(map[string]domain.OrderItem, len(orderItems))
	for _, item := range orderItems {
		itemsByID[item.ID] = item
	}
	for _, item := range rr.Items {
		if _, ok := itemsByID[item.OrderItemID]; !ok {
			err = fmt.Errorf("return %s references unknown order item %s: %w", rr.ID, item.OrderItemID, domain.ErrOrderNotFound)
			return domain.Transaction{}, err
		}
	}

	gatewayRef, err := pay(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}

	now := time.Now().UTC()

	ledgerEntry := domain.Transaction{
		ID:          uuid.NewString(),
		Type:        domain.TransactionTypeRefund,
		Status:      domain.TransactionStatusSuccess,
		AmountMinor: job.RefundMinor,
		Ref:         domain.LedgerRef{Kind: domain.RefKindReturn, ID: rr.ID},
		GatewayRef:  gatewayRef,
		CreatedAt:   now,
	}
	if err = insertLedgerTx(ctx, tx, ledgerEntry); err != nil {
		return domain.Transaction{}, err
	}

	rr.Status = domain.ReturnStatusRefunded
	rr.UpdatedAt = now
	if err = saveReturnTx(ctx, tx, rr, domain.HistoryEntry{
		Status:   string(domain.ReturnStatusRefunded),
		Actor:    "settlement-worker",
		Comment:  fmt.Sprintf("refund %d settled, gateway ref %s", job.RefundMinor, gatewayRef),
		Occurred: now,
	}); err != nil {
		return domain.Transaction{}, err
	}

	var orderStatus string
	if err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, rr.OrderID).Scan(&orderStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = domain.ErrOrderNotFound
		}
		return domain.Transaction{}, err
	}
	if err = insertOrderHistory(ctx, tx, rr.OrderID, domain.HistoryEntry{
		Status:   orderStatus,
		Actor:    "settlement-worker",
		Comment:  fmt.Sprintf("refund settled for return %s", rr.ID),
		Occurred: now,
	}); err != nil {
		return domain.Transaction{}, err
	}

	// Сток возвращается по размеру исходной позиции заказа: в заявке размер
	// не дублируется.
	for _, item := range rr.Items {
		orderItem := itemsByID[item.OrderItemID]
		if err = creditStock(ctx, tx, orderItem.ProductID, orderItem.Size, item.Qty); err != nil {
			return domain.Transaction{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Transaction{}, fmt.Errorf("commit settlement: %w", err)
	}

	return ledgerEntry, nil
}

// lockReturnForSettlement читает заявку с блокировкой строки, чтобы два
// воркера не проводили расчёт по одному возврату параллельно.
func lockReturnForSettlement(ctx context.Context, tx *sql.Tx, returnID string) (domain.ReturnRequest, error) {
	rr, err := scanReturn(tx.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, status, refund_minor,
		       version, created_at, updated_at
		FROM return_requests
		WHERE id = $1
		FOR UPDATE
	`, returnID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReturnRequest{}, domain.ErrReturnNotFound
		}
		return domain.ReturnRequest{}, fmt.Errorf("lock return request: %w", err)
	}

	return rr, nil
}

var _ domain.SettlementRepository = (*settlementRepository)(nil)
