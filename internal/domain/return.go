package domain

import "time"

// ReturnStatus описывает жизненный цикл возврата: запрос → логистика →
// инспекция → расчёт возмещения.
type ReturnStatus string

const (
	// ReturnStatusRequested — клиент подал заявку на возврат.
	ReturnStatusRequested ReturnStatus = "requested"
	// ReturnStatusPickupScheduled — назначен забор товара у клиента.
	ReturnStatusPickupScheduled ReturnStatus = "pickup_scheduled"
	// ReturnStatusQCPending — товар на складе, ожидает проверки качества.
	ReturnStatusQCPending ReturnStatus = "qc_pending"
	// ReturnStatusQCPassed — проверка пройдена, возврат одобрен.
	ReturnStatusQCPassed ReturnStatus = "qc_passed"
	// ReturnStatusQCFailed — проверка не пройдена, возврат отклонён.
	ReturnStatusQCFailed ReturnStatus = "qc_failed"
	// ReturnStatusRefundProcessing — воркер взял возврат в расчёт.
	ReturnStatusRefundProcessing ReturnStatus = "refund_processing"
	// ReturnStatusRefunded — деньги возвращены, сток восстановлен; терминальный статус.
	ReturnStatusRefunded ReturnStatus = "refunded"
	// ReturnStatusRefundFailed — расчёт признан невозможным; выставляется только оператором.
	ReturnStatusRefundFailed ReturnStatus = "refund_failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusRequested, ReturnStatusPickupScheduled, ReturnStatusQCPending,
		ReturnStatusQCPassed, ReturnStatusQCFailed,
		ReturnStatusRefundProcessing, ReturnStatusRefunded, ReturnStatusRefundFailed:
		return true
	default:
		return false
	}
}

// Inspectable сообщает, допустима ли фиксация результата инспекции из статуса.
func (s ReturnStatus) Inspectable() bool {
	switch s {
	case ReturnStatusRequested, ReturnStatusPickupScheduled, ReturnStatusQCPending:
		return true
	default:
		return false
	}
}

// Settleable сообщает, можно ли начинать расчёт возмещения из статуса.
func (s ReturnStatus) Settleable() bool {
	return s == ReturnStatusQCPassed || s == ReturnStatusRefundProcessing
}

// ReturnItem — одна заявленная к возврату позиция. Размер здесь не
// дублируется: при расчёте он берётся из исходной позиции заказа.
type ReturnItem struct {
	// OrderItemID ссылается на позицию исходного заказа.
	OrderItemID string
	// ProductID — идентификатор товара.
	ProductID string
	// Qty — заявленное количество; не больше количества в заказе.
	Qty int32
	// Reason — причина возврата со слов клиента.
	Reason string
	// Condition — оценка состояния товара при инспекции.
	Condition string
}

// ReturnRequest агрегирует заявку на возврат по одному заказу.
type ReturnRequest struct {
	ID      string
	OrderID string
	UserID  string
	Status  ReturnStatus

	Items []ReturnItem

	// RefundMinor — сумма возмещения: Σ qty × снапшот цены позиции.
	// Налог и доставка пропорционально не возвращаются.
	RefundMinor int64

	History []HistoryEntry

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заявки и возвращает список замечаний.
func (r *ReturnRequest) ValidateInvariants() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(r.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !r.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	if r.RefundMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	for _, item := range r.Items {
		if item.OrderItemID == "" {
			errs = append(errs, ErrOrderItemIDRequired)
		}
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}

	return errs
}
