package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// SettlementRepository — in-memory реализация расчёта возмещения. Вся
// валидация выполняется до первой мутации, поэтому неуспешный расчёт не
// оставляет частично применённого состояния — аналог отката транзакции.
type SettlementRepository struct {
	returns *ReturnRepository
	orders  *OrderRepository
	ledger  *LedgerRepository
	inv     *InventoryRepository
}

// NewSettlementRepository собирает расчётный репозиторий поверх in-memory хранилищ.
func NewSettlementRepository(returns *ReturnRepository, orders *OrderRepository, ledger *LedgerRepository, inv *InventoryRepository) *SettlementRepository {
	return &SettlementRepository{
		returns: returns,
		orders:  orders,
		ledger:  ledger,
		inv:     inv,
	}
}

// Settle проводит расчёт возмещения: оплата через pay, перевод возврата в
// refunded, refund-запись леджера, журнал заказа и восстановление стока.
func (r *SettlementRepository) Settle(ctx context.Context, job domain.SettlementJob, pay domain.PaymentCharge) (domain.Transaction, error) {
	rr, err := r.returns.Get(ctx, job.ReturnRequestID)
	if err != nil {
		return domain.Transaction{}, err
	}
	if !rr.Status.Settleable() {
		if rr.Status == domain.ReturnStatusRefunded {
			return domain.Transaction{}, domain.ErrDuplicateRefund
		}
		return domain.Transaction{}, fmt.Errorf("settle return %s from status %s: %w", rr.ID, rr.Status, domain.ErrInvalidTransition)
	}

	order, err := r.orders.Get(ctx, rr.OrderID)
	if err != nil {
		return domain.Transaction{}, err
	}

	// Размер для восстановления стока берём из исходной позиции заказа:
	// в заявке он не дублируется.
	type restock struct {
		productID string
		size      string
		qty       int32
	}
	credits := make([]restock, 0, len(rr.Items))
	for _, item := range rr.Items {
		orderItem, ok := order.ItemByID(item.OrderItemID)
		if !ok {
			return domain.Transaction{}, fmt.Errorf("return %s references unknown order item %s: %w", rr.ID, item.OrderItemID, domain.ErrOrderNotFound)
		}
		credits = append(credits, restock{productID: orderItem.ProductID, size: orderItem.Size, qty: item.Qty})
	}

	if _, err := r.ledger.FindSuccessfulRefund(ctx, rr.ID); err == nil {
		return domain.Transaction{}, domain.ErrDuplicateRefund
	}

	gatewayRef, err := pay(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}

	now := time.Now().UTC()

	tx := domain.Transaction{
		ID:          uuid.New().String(),
		Type:        domain.TransactionTypeRefund,
		Status:      domain.TransactionStatusSuccess,
		AmountMinor: job.RefundMinor,
		Ref:         domain.LedgerRef{Kind: domain.RefKindReturn, ID: rr.ID},
		GatewayRef:  gatewayRef,
		CreatedAt:   now,
	}
	if err := r.ledger.Append(ctx, tx); err != nil {
		return domain.Transaction{}, err
	}

	rr.Status = domain.ReturnStatusRefunded
	rr.UpdatedAt = now
	if err := r.returns.Save(ctx, rr, domain.HistoryEntry{
		Status:   string(domain.ReturnStatusRefunded),
		Actor:    "settlement-worker",
		Comment:  fmt.Sprintf("refund %d settled, gateway ref %s", job.RefundMinor, gatewayRef),
		Occurred: now,
	}, nil); err != nil {
		return domain.Transaction{}, err
	}

	if err := r.orders.Save(ctx, order, domain.HistoryEntry{
		Status:   string(order.Status),
		Actor:    "settlement-worker",
		Comment:  fmt.Sprintf("refund settled for return %s", rr.ID),
		Occurred: now,
	}); err != nil {
		return domain.Transaction{}, err
	}

	for _, credit := range credits {
		if err := r.inv.Adjust(ctx, credit.productID, credit.size, credit.qty); err != nil {
			return domain.Transaction{}, err
		}
	}

	return tx, nil
}

var _ domain.SettlementRepository = (*SettlementRepository)(nil)
