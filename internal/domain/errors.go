package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одной позиции.
	ErrItemsRequired = errors.New("at least one item is required")
	// Ошибка отсутствующего идентификатора товара.
	ErrProductRequired = errors.New("product_id is required")
	// Ошибка неподдерживаемого размерного варианта.
	ErrSizeInvalid = errors.New("size variant is not supported")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// Ошибка несоответствия денежной разбивки и сумм позиций.
	ErrAmountMismatch = errors.New("amount breakdown does not match items sum")
	// Ошибка неизвестного статуса.
	ErrInvalidStatus = errors.New("status is not supported")
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующей ссылки на позицию заказа в возврате.
	ErrOrderItemIDRequired = errors.New("order_item_id is required")
	// Ошибка неподдерживаемого типа записи леджера.
	ErrLedgerTypeInvalid = errors.New("ledger transaction type is not supported")
	// Ошибка неподдерживаемого статуса записи леджера.
	ErrLedgerStatusInvalid = errors.New("ledger transaction status is not supported")
	// Ошибка некорректной ссылки записи леджера.
	ErrLedgerRefInvalid = errors.New("ledger transaction ref is invalid")
	// Ошибка отсутствующего курьера при переходе в shipped.
	ErrCourierRequired = errors.New("courier is required for shipped status")
	// Ошибка отсутствующего трек-номера при переходе в shipped.
	ErrTrackingRefRequired = errors.New("tracking_ref is required for shipped status")

	// ErrStockConflict — условное списание стока не прошло: остатка не хватает.
	// Ожидаемый исход при конкурентном спросе, не повод для автоматического retry.
	ErrStockConflict = errors.New("insufficient stock")
	// ErrInvalidTransition — запрошенный переход статуса недопустим.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrReturnWindowExpired — окно возврата после доставки истекло.
	ErrReturnWindowExpired = errors.New("return window expired")
	// ErrReturnQtyExceeded — заявленное количество больше, чем было в заказе.
	ErrReturnQtyExceeded = errors.New("claimed qty exceeds ordered qty")
	// ErrOrderNotDelivered — возврат возможен только по доставленному заказу.
	ErrOrderNotDelivered = errors.New("order is not delivered")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrReturnNotFound возвращается, если заявка на возврат не найдена.
	ErrReturnNotFound = errors.New("return request not found")
	// ErrStockNotFound возвращается, если остаток по товару/размеру не заведён.
	ErrStockNotFound = errors.New("product stock not found")
	// ErrLedgerEntryNotFound возвращается, если запись леджера не найдена.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicateRefund — успешный refund по этому возврату уже записан.
	ErrDuplicateRefund = errors.New("refund already recorded for return")

	// ErrExternalFailure — внешний коллаборатор (платёжный шлюз и т.п.)
	// ответил ошибкой; операция повторяема политикой очереди.
	ErrExternalFailure = errors.New("external collaborator failure")
	// ErrLockContention — блокировка занята другим воркером; повторить позже.
	ErrLockContention = errors.New("lock is held by another worker")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// StockConflictError уточняет, по какой позиции не хватило остатка,
// чтобы клиент мог убрать из заказа именно её.
type StockConflictError struct {
	ProductID string
	Size      string
	Requested int32
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s (requested %d)", e.ProductID, e.Size, e.Requested)
}

// Unwrap делает ошибку совместимой с errors.Is(err, ErrStockConflict).
func (e *StockConflictError) Unwrap() error {
	return ErrStockConflict
}

// IsPolicyViolation относит ошибку к нарушениям бизнес-политики возвратов:
// такие ошибки показываются пользователю и не ретраятся.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrReturnWindowExpired) ||
		errors.Is(err, ErrReturnQtyExceeded) ||
		errors.Is(err, ErrOrderNotDelivered)
}

// IsRetryable сообщает, имеет ли смысл повторять операцию воркера.
// Нарушения переходов и дубликаты refund повторять бессмысленно.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateRefund) ||
		errors.Is(err, ErrReturnNotFound) ||
		errors.Is(err, ErrOrderNotFound) {
		return false
	}
	return true
}
