package domain

import "time"

// OutboxMessage хранит данные для публикуемого события. Запись в outbox
// делается в одной транзакции с изменением статуса, поэтому событие не
// теряется при падении процесса между коммитом и публикацией.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Типы событий, проходящих через outbox.
const (
	// EventReturnApproved — возврат прошёл инспекцию; payload содержит
	// задание на расчёт возмещения. AggregateID = id возврата, он же
	// ключ дедупликации в очереди.
	EventReturnApproved = "ReturnApproved"
	// EventOrderPlaced — заказ создан, уведомление клиенту.
	EventOrderPlaced = "OrderPlaced"
	// EventOrderStatusChanged — статус заказа изменился.
	EventOrderStatusChanged = "OrderStatusChanged"
	// EventReturnRejected — возврат не прошёл инспекцию.
	EventReturnRejected = "ReturnRejected"
	// EventReturnRefunded — возмещение рассчитано и выплачено.
	EventReturnRefunded = "ReturnRefunded"
)
