package domain

import (
	"context"
	"time"
)

// PaymentGateway описывает взаимодействие с платёжным провайдером.
// Провайдер непрозрачен: важен только исход и внешний идентификатор операции.
type PaymentGateway interface {
	// Refund инициирует возврат средств по ссылке платежа и возвращает
	// идентификатор операции в шлюзе.
	Refund(ctx context.Context, paymentRef string, amountMinor int64) (string, error)
}

// NotificationEvent — уведомление для внешнего диспетчера (email/сокеты).
type NotificationEvent struct {
	Type     string                 `json:"type"`
	UserID   string                 `json:"user_id"`
	OrderID  string                 `json:"order_id,omitempty"`
	ReturnID string                 `json:"return_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Occurred time.Time              `json:"occurred"`
}

// Notifier отправляет уведомления в режиме fire-and-forget: ошибки доставки
// никогда не откатывают состояние, которое их породило.
type Notifier interface {
	Notify(event NotificationEvent)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// LockStore — разделяемое KV-хранилище для короткоживущих блокировок.
type LockStore interface {
	// TryAcquire выполняет единственную условную запись
	// "поставить, если нет живой записи" и возвращает признак успеха.
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release удаляет запись только при совпадении токена (compare-and-delete),
	// чтобы владелец не снял чужую блокировку после истечения своего TTL.
	Release(ctx context.Context, key, token string) (bool, error)
	// DeleteExpired удаляет записи с истёкшим TTL порциями не больше limit
	// и возвращает число удалённых. Истёкшие записи и так перехватываются
	// при следующем TryAcquire, очистка лишь сдерживает рост хранилища.
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
