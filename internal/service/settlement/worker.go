// Package settlement реализует воркера расчёта возмещений. Очередь доставляет
// задания at-least-once, поэтому воркер строит exactly-once эффект из трёх
// слоёв: предварительная проверка леджера, распределённая блокировка по заказу
// и уникальность успешной refund-записи внутри транзакции расчёта.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/lock"
	"github.com/vladislavdragonenkov/fms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fms/internal/metrics"
)

const defaultLockTTL = 30 * time.Second

// Итоги обработки задания для метрик.
const (
	resultSuccess    = "success"
	resultDuplicate  = "duplicate"
	resultContention = "contention"
	resultRejected   = "rejected"
	resultError      = "error"
)

// WorkerOptions задаёт параметры воркера расчёта.
type WorkerOptions struct {
	Logger  *log.Entry
	Metrics *metrics.SettlementMetrics
	LockTTL time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики воркера.
func WithMetrics(m *metrics.SettlementMetrics) Option {
	return func(opts *WorkerOptions) {
		opts.Metrics = m
	}
}

// WithLockTTL задаёт TTL блокировки по заказу.
func WithLockTTL(ttl time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.LockTTL = ttl
	}
}

// Worker обрабатывает задания на расчёт возмещения.
type Worker struct {
	settle   domain.SettlementRepository
	ledger   domain.LedgerRepository
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	locks    *lock.Manager
	notifier domain.Notifier

	logger  *log.Entry
	metrics *metrics.SettlementMetrics
	lockTTL time.Duration
}

// NewWorker собирает воркера расчёта. notifier может быть nil.
func NewWorker(settle domain.SettlementRepository, ledger domain.LedgerRepository, orders domain.OrderRepository, gateway domain.PaymentGateway, locks *lock.Manager, notifier domain.Notifier, options ...Option) *Worker {
	opts := WorkerOptions{LockTTL: defaultLockTTL}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "settlement-worker")
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSettlementMetrics()
	}

	return &Worker{
		settle:   settle,
		ledger:   ledger,
		orders:   orders,
		gateway:  gateway,
		locks:    locks,
		notifier: notifier,
		logger:   logger,
		metrics:  opts.Metrics,
		lockTTL:  opts.LockTTL,
	}
}

// HandleMessage — адаптер под kafka.MessageHandler: извлекает задание из
// сообщения очереди и передаёт его в Process. Нераспарсиваемое сообщение —
// невосстановимая ошибка, пусть уходит в DLQ политикой consumer-а.
func (w *Worker) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	job, err := kafka.ParseSettlementJob(message)
	if err != nil {
		return err
	}
	return w.Process(ctx, job)
}

// Process выполняет одно задание. Возвращаемая ошибка означает "повторить
// доставку": дубликаты и невалидные задания завершаются без ошибки, чтобы
// очередь не крутила их бесконечно.
func (w *Worker) Process(ctx context.Context, job domain.SettlementJob) error {
	started := time.Now()
	w.metrics.RecordJobStarted()
	defer func() {
		w.metrics.RecordJobFinished()
		w.metrics.RecordJobDuration(time.Since(started))
	}()

	logger := w.logger.WithFields(log.Fields{
		"return_id": job.ReturnRequestID,
		"order_id":  job.OrderID,
	})

	// Дешёвая проверка идемпотентности до захвата блокировки: повторно
	// доставленное задание по уже рассчитанному возврату — no-op.
	if _, err := w.ledger.FindSuccessfulRefund(ctx, job.ReturnRequestID); err == nil {
		w.metrics.RecordDuplicateSkip()
		w.metrics.RecordJobResult(resultDuplicate)
		logger.Info("refund already settled, skipping job")
		return nil
	} else if !errors.Is(err, domain.ErrLedgerEntryNotFound) {
		w.metrics.RecordJobResult(resultError)
		return fmt.Errorf("check refund ledger for return %s: %w", job.ReturnRequestID, err)
	}

	// Блокировка по заказу сериализует конкурирующие расчёты и смежные
	// операции над одним заказом между воркерами.
	release, acquired, err := w.locks.Acquire(ctx, lockKey(job.OrderID), w.lockTTL)
	if err != nil {
		w.metrics.RecordJobResult(resultError)
		return fmt.Errorf("acquire settlement lock for order %s: %w", job.OrderID, err)
	}
	if !acquired {
		w.metrics.RecordLockContention()
		w.metrics.RecordJobResult(resultContention)
		logger.Info("settlement lock is busy, job will be redelivered")
		return fmt.Errorf("order %s: %w", job.OrderID, domain.ErrLockContention)
	}
	defer release()

	order, err := w.orders.Get(ctx, job.OrderID)
	if err != nil {
		if !domain.IsRetryable(err) {
			w.metrics.RecordJobResult(resultRejected)
			logger.WithError(err).Warn("settlement job references missing order, dropping")
			return nil
		}
		w.metrics.RecordJobResult(resultError)
		return fmt.Errorf("load order %s: %w", job.OrderID, err)
	}

	tx, err := w.settle.Settle(ctx, job, func(payCtx context.Context) (string, error) {
		gatewayRef, refundErr := w.gateway.Refund(payCtx, order.PaymentRef, job.RefundMinor)
		if refundErr != nil {
			return "", fmt.Errorf("refund via gateway: %w: %v", domain.ErrExternalFailure, refundErr)
		}
		return gatewayRef, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRefund) {
			// Гонку двух воркеров окончательно разрешает леджер.
			w.metrics.RecordDuplicateSkip()
			w.metrics.RecordJobResult(resultDuplicate)
			logger.Info("refund settled concurrently, skipping job")
			return nil
		}
		if !domain.IsRetryable(err) {
			w.metrics.RecordJobResult(resultRejected)
			logger.WithError(err).Warn("settlement job is not processable, dropping")
			return nil
		}
		w.metrics.RecordJobResult(resultError)
		return fmt.Errorf("settle return %s: %w", job.ReturnRequestID, err)
	}

	w.metrics.RecordJobResult(resultSuccess)
	logger.WithFields(log.Fields{
		"ledger_tx":   tx.ID,
		"gateway_ref": tx.GatewayRef,
		"amount":      tx.AmountMinor,
	}).Info("refund settled")

	w.notify(domain.NotificationEvent{
		Type:     domain.EventReturnRefunded,
		UserID:   job.UserID,
		OrderID:  job.OrderID,
		ReturnID: job.ReturnRequestID,
		Metadata: map[string]interface{}{"amount_minor": tx.AmountMinor},
		Occurred: time.Now().UTC(),
	})

	return nil
}

func (w *Worker) notify(event domain.NotificationEvent) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(event)
}

func lockKey(orderID string) string {
	return "order:" + orderID
}
