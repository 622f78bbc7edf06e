// Package notify отправляет пользовательские уведомления во внешний
// диспетчер через Kafka. Доставка fire-and-forget: сбой уведомления никогда
// не влияет на операцию, которая его породила.
package notify

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/breaker"
	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
)

// eventPublisher — минимальный контракт Kafka producer-а.
type eventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// KafkaNotifier публикует события уведомлений в topic диспетчера. Публикация
// идёт через circuit breaker: при недоступном брокере события отбрасываются
// с записью в лог вместо блокировки вызывающих обработчиков.
type KafkaNotifier struct {
	publisher eventPublisher
	breaker   *breaker.Breaker
	logger    *log.Entry
}

// NewKafkaNotifier создаёт notifier поверх producer-а. breaker и logger
// могут быть nil — тогда используются значения по умолчанию.
func NewKafkaNotifier(publisher eventPublisher, br *breaker.Breaker, logger *log.Entry) *KafkaNotifier {
	if logger == nil {
		logger = log.WithField("component", "kafka-notifier")
	}
	if br == nil {
		br = breaker.New(0, 0, logger)
	}
	return &KafkaNotifier{
		publisher: publisher,
		breaker:   br,
		logger:    logger,
	}
}

// Notify публикует событие. Ключ сообщения — пользователь, чтобы события
// одного получателя читались по порядку.
func (n *KafkaNotifier) Notify(event domain.NotificationEvent) {
	if n.publisher == nil {
		return
	}

	err := n.breaker.Do("notify", func() error {
		return n.publisher.PublishEvent(kafka.TopicNotifications, event.UserID, event)
	})
	if err != nil {
		n.logger.WithError(err).WithFields(log.Fields{
			"type":    event.Type,
			"user_id": event.UserID,
		}).Warn("notification dropped")
	}
}

var _ domain.Notifier = (*KafkaNotifier)(nil)

// LogNotifier пишет уведомления в лог. Используется, когда Kafka не
// сконфигурирована (локальная разработка, тесты).
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier, пишущий в переданный logger.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify пишет событие в лог.
func (n *LogNotifier) Notify(event domain.NotificationEvent) {
	n.logger.WithFields(log.Fields{
		"type":      event.Type,
		"user_id":   event.UserID,
		"order_id":  event.OrderID,
		"return_id": event.ReturnID,
	}).Info("notification")
}

var _ domain.Notifier = (*LogNotifier)(nil)
