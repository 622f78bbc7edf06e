package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// Topics для Kafka.
const (
	// TopicSettlementJobs — durable-очередь заданий на расчёт возмещения.
	// Ключ сообщения = id возврата, поэтому повторные enqueue по одному
	// возврату схлопываются в одну партицию и обрабатываются по порядку.
	TopicSettlementJobs = "fms.settlement.jobs"
	// TopicNotifications — события для внешнего диспетчера уведомлений.
	TopicNotifications = "fms.notification.events"
	// TopicDeadLetterQueue — terminal-состояние для заданий, исчерпавших retry.
	TopicDeadLetterQueue = "fms.dlq"
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// JobEnvelope — обёртка задания в очереди расчёта.
type JobEnvelope struct {
	Job        domain.SettlementJob `json:"job"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// SettlementJobKey детерминированно выводит идентичность задания из id
// возврата: дубликаты enqueue получают один и тот же ключ.
func SettlementJobKey(returnRequestID string) string {
	return returnRequestID
}

// ParseSettlementJob извлекает задание из сообщения очереди. Поддерживается
// и конверт outbox-релея, и прямой JobEnvelope (например, из dlq-reprocess).
func ParseSettlementJob(message *sarama.ConsumerMessage) (domain.SettlementJob, error) {
	var envelope struct {
		EventType string          `json:"event_type"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return domain.SettlementJob{}, fmt.Errorf("unmarshal settlement envelope: %w", err)
	}

	raw := envelope.Payload
	if len(raw) == 0 {
		raw = message.Value
	}

	var job domain.SettlementJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.SettlementJob{}, fmt.Errorf("unmarshal settlement job: %w", err)
	}
	if job.ReturnRequestID == "" {
		return domain.SettlementJob{}, fmt.Errorf("settlement job has no return_request_id")
	}

	return job, nil
}
