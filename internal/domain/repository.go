package domain

import "context"

// InventoryRepository — леджер складских остатков. Контракт исключает
// read-modify-write: списание выражается одной условной записью.
type InventoryRepository interface {
	// Adjust меняет остаток варианта на delta. Для отрицательной delta
	// запись условная: "уменьшить, только если остатка хватает"; при
	// нехватке возвращается *StockConflictError и строка не трогается.
	// Для положительной delta — безусловный инкремент.
	Adjust(ctx context.Context, productID, size string, delta int32) error
	// Get возвращает остатки всех размеров товара.
	Get(ctx context.Context, productID string) ([]ProductStock, error)
	// Put заводит или перезаписывает остаток варианта (админ-операция).
	Put(ctx context.Context, stock ProductStock) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно резервирует сток по всем позициям и сохраняет заказ
	// с первой записью журнала. Конфликт по любой позиции откатывает всё
	// и возвращается как *StockConflictError с указанием позиции.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByUser возвращает заказы пользователя с ограничением на количество.
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking и
	// добавляет переданную запись журнала в той же транзакции.
	Save(ctx context.Context, order Order, entry HistoryEntry) error
}

// ReturnRepository описывает требования к хранилищу заявок на возврат.
type ReturnRepository interface {
	// Create сохраняет новую заявку вместе с первой записью журнала.
	Create(ctx context.Context, rr ReturnRequest) error
	// Get возвращает заявку по идентификатору или ErrReturnNotFound.
	Get(ctx context.Context, id string) (ReturnRequest, error)
	// ListByUser возвращает заявки пользователя.
	ListByUser(ctx context.Context, userID string, limit int) ([]ReturnRequest, error)
	// Save применяет смену статуса с optimistic locking, добавляет запись
	// журнала и, если передано сообщение, кладёт его в outbox — всё в одной
	// транзакции.
	Save(ctx context.Context, rr ReturnRequest, entry HistoryEntry, outbox *OutboxMessage) error
}

// LedgerRepository — доступ к финансовым записям.
type LedgerRepository interface {
	// FindSuccessfulRefund ищет успешную refund-запись по возврату.
	// Возвращает ErrLedgerEntryNotFound, если её нет. Это проверка
	// идемпотентности воркера расчёта.
	FindSuccessfulRefund(ctx context.Context, returnID string) (Transaction, error)
	// ListByRef возвращает записи по ссылке на заказ или возврат.
	ListByRef(ctx context.Context, ref LedgerRef) ([]Transaction, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// SettlementJob — задание на расчёт возмещения, которое кладётся в очередь
// при одобрении возврата. Идентичность задания выводится из ReturnRequestID.
type SettlementJob struct {
	ReturnRequestID string `json:"return_request_id"`
	OrderID         string `json:"order_id"`
	UserID          string `json:"user_id"`
	RefundMinor     int64  `json:"refund_minor"`
}

// PaymentCharge выполняется внутри транзакции расчёта и возвращает
// идентификатор операции в платёжном шлюзе.
type PaymentCharge func(ctx context.Context) (string, error)

// SettlementRepository выполняет финансовую часть возврата одной
// мультидокументной транзакцией: статус заявки, запись леджера, журнал
// заказа и восстановление стока фиксируются атомарно.
type SettlementRepository interface {
	// Settle проводит расчёт: вызывает pay, переводит возврат в refunded с
	// записью журнала, вставляет refund-запись леджера с внешней ссылкой,
	// дописывает журнал заказа и возвращает сток по размерам из исходных
	// позиций заказа. Любая ошибка откатывает транзакцию целиком.
	Settle(ctx context.Context, job SettlementJob, pay PaymentCharge) (Transaction, error)
}
