package returns

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const (
	// DefaultReturnWindowDays — окно возврата после доставки. День 7
	// включительно принимается, день 8 — уже нет.
	DefaultReturnWindowDays = 7

	defaultListLimit = 100

	aggregateTypeReturn = "return_request"
)

// Service реализует жизненный цикл возврата: заявка, логистика, инспекция.
type Service struct {
	returns    domain.ReturnRepository
	orders     domain.OrderRepository
	notifier   domain.Notifier
	windowDays int
	logger     *log.Entry
}

// NewService конструирует сервис возвратов. windowDays <= 0 заменяется
// значением по умолчанию, notifier может быть nil.
func NewService(returns domain.ReturnRepository, orders domain.OrderRepository, notifier domain.Notifier, windowDays int, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "returns-service")
	}
	if windowDays <= 0 {
		windowDays = DefaultReturnWindowDays
	}
	return &Service{
		returns:    returns,
		orders:     orders,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     logger,
	}
}

// ReturnItemInput — одна заявляемая к возврату позиция.
type ReturnItemInput struct {
	OrderItemID string
	Qty         int32
	Reason      string
}

// RequestReturnInput — параметры заявки на возврат.
type RequestReturnInput struct {
	OrderID string
	UserID  string
	Items   []ReturnItemInput
	Actor   string
}

// RequestReturn проверяет политику возвратов и создаёт заявку.
// Заказ должен быть доставлен, окно возврата не истекло, заявленное
// количество по каждой позиции не превышает заказанное. Сумма возмещения —
// Σ qty × снапшот цены позиции; налог и доставка не возвращаются.
func (s *Service) RequestReturn(ctx context.Context, in RequestReturnInput) (domain.ReturnRequest, error) {
	if in.UserID == "" {
		return domain.ReturnRequest{}, domain.ErrUserRequired
	}
	if in.OrderID == "" {
		return domain.ReturnRequest{}, domain.ErrOrderIDRequired
	}
	if len(in.Items) == 0 {
		return domain.ReturnRequest{}, domain.ErrItemsRequired
	}

	order, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	if order.Status != domain.OrderStatusDelivered || order.DeliveredAt == nil {
		return domain.ReturnRequest{}, domain.ErrOrderNotDelivered
	}

	now := time.Now().UTC()
	deadline := order.DeliveredAt.AddDate(0, 0, s.windowDays)
	if now.After(deadline) {
		return domain.ReturnRequest{}, fmt.Errorf("return window of %d days ended %s: %w",
			s.windowDays, deadline.Format(time.RFC3339), domain.ErrReturnWindowExpired)
	}

	rr := domain.ReturnRequest{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		UserID:    in.UserID,
		Status:    domain.ReturnStatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}

	seen := make(map[string]bool, len(in.Items))
	var refundMinor int64
	for _, item := range in.Items {
		if item.OrderItemID == "" {
			return domain.ReturnRequest{}, domain.ErrOrderItemIDRequired
		}
		if item.Qty <= 0 {
			return domain.ReturnRequest{}, domain.ErrItemQtyInvalid
		}
		if seen[item.OrderItemID] {
			return domain.ReturnRequest{}, fmt.Errorf("order item %s claimed twice: %w",
				item.OrderItemID, domain.ErrReturnQtyExceeded)
		}
		seen[item.OrderItemID] = true

		orderItem, ok := order.ItemByID(item.OrderItemID)
		if !ok {
			return domain.ReturnRequest{}, fmt.Errorf("order item %s: %w",
				item.OrderItemID, domain.ErrOrderItemIDRequired)
		}
		if item.Qty > orderItem.Qty {
			return domain.ReturnRequest{}, fmt.Errorf("order item %s: claimed %d of %d: %w",
				item.OrderItemID, item.Qty, orderItem.Qty, domain.ErrReturnQtyExceeded)
		}

		rr.Items = append(rr.Items, domain.ReturnItem{
			OrderItemID: item.OrderItemID,
			ProductID:   orderItem.ProductID,
			Qty:         item.Qty,
			Reason:      item.Reason,
		})
		refundMinor += int64(item.Qty) * orderItem.PriceMinor
	}
	rr.RefundMinor = refundMinor

	actor := in.Actor
	if actor == "" {
		actor = in.UserID
	}
	rr.History = []domain.HistoryEntry{{
		Status:   string(domain.ReturnStatusRequested),
		Actor:    actor,
		Comment:  "return requested",
		Occurred: now,
	}}

	if err := s.returns.Create(ctx, rr); err != nil {
		return domain.ReturnRequest{}, err
	}

	s.logger.WithFields(log.Fields{
		"return_id": rr.ID,
		"order_id":  rr.OrderID,
		"refund":    rr.RefundMinor,
	}).Info("return requested")

	return rr, nil
}

// SchedulePickup назначает забор товара: requested → pickup_scheduled,
// затем поступление на склад переводит заявку в qc_pending.
func (s *Service) SchedulePickup(ctx context.Context, returnID, actor, comment string) (domain.ReturnRequest, error) {
	rr, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	var next domain.ReturnStatus
	switch rr.Status {
	case domain.ReturnStatusRequested:
		next = domain.ReturnStatusPickupScheduled
	case domain.ReturnStatusPickupScheduled:
		next = domain.ReturnStatusQCPending
	default:
		return domain.ReturnRequest{}, fmt.Errorf("schedule pickup for return %s in status %s: %w",
			rr.ID, rr.Status, domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	rr.Status = next
	rr.UpdatedAt = now
	entry := domain.HistoryEntry{
		Status:   string(next),
		Actor:    actor,
		Comment:  comment,
		Occurred: now,
	}

	if err := s.returns.Save(ctx, rr, entry, nil); err != nil {
		return domain.ReturnRequest{}, err
	}

	rr.Version++
	rr.History = append(rr.History, entry)
	return rr, nil
}

// InspectionOutcome — итог проверки качества.
type InspectionOutcome string

const (
	InspectionPassed InspectionOutcome = "passed"
	InspectionFailed InspectionOutcome = "failed"
)

// InspectionItemInput — оценка состояния одной позиции при инспекции.
type InspectionItemInput struct {
	OrderItemID string
	Condition   string
}

// RecordInspection фиксирует итог инспекции. Допустима только из статусов
// requested, pickup_scheduled и qc_pending. При прохождении проверки заявка
// переводится в qc_passed, и в той же транзакции в outbox кладётся ровно
// одно задание на расчёт возмещения: смена статуса без задания или задание
// без смены статуса невозможны.
func (s *Service) RecordInspection(ctx context.Context, returnID string, outcome InspectionOutcome, items []InspectionItemInput, actor, notes string) (domain.ReturnRequest, error) {
	if outcome != InspectionPassed && outcome != InspectionFailed {
		return domain.ReturnRequest{}, domain.ErrInvalidStatus
	}

	rr, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	if !rr.Status.Inspectable() {
		return domain.ReturnRequest{}, fmt.Errorf("inspect return %s in status %s: %w",
			rr.ID, rr.Status, domain.ErrInvalidTransition)
	}

	conditions := make(map[string]string, len(items))
	for _, item := range items {
		conditions[item.OrderItemID] = item.Condition
	}
	for i := range rr.Items {
		if condition, ok := conditions[rr.Items[i].OrderItemID]; ok {
			rr.Items[i].Condition = condition
		}
	}

	now := time.Now().UTC()
	next := domain.ReturnStatusQCPassed
	if outcome == InspectionFailed {
		next = domain.ReturnStatusQCFailed
	}
	rr.Status = next
	rr.UpdatedAt = now

	entry := domain.HistoryEntry{
		Status:   string(next),
		Actor:    actor,
		Comment:  notes,
		Occurred: now,
	}

	var outboxMsg *domain.OutboxMessage
	if next == domain.ReturnStatusQCPassed {
		payload, err := json.Marshal(domain.SettlementJob{
			ReturnRequestID: rr.ID,
			OrderID:         rr.OrderID,
			UserID:          rr.UserID,
			RefundMinor:     rr.RefundMinor,
		})
		if err != nil {
			return domain.ReturnRequest{}, fmt.Errorf("marshal settlement job: %w", err)
		}
		outboxMsg = &domain.OutboxMessage{
			AggregateType: aggregateTypeReturn,
			AggregateID:   rr.ID,
			EventType:     domain.EventReturnApproved,
			Payload:       payload,
		}
	}

	if err := s.returns.Save(ctx, rr, entry, outboxMsg); err != nil {
		return domain.ReturnRequest{}, err
	}

	s.logger.WithFields(log.Fields{
		"return_id": rr.ID,
		"outcome":   string(outcome),
	}).Info("inspection recorded")

	if next == domain.ReturnStatusQCFailed {
		s.notify(domain.NotificationEvent{
			Type:     domain.EventReturnRejected,
			UserID:   rr.UserID,
			OrderID:  rr.OrderID,
			ReturnID: rr.ID,
			Occurred: now,
		})
	}

	rr.Version++
	rr.History = append(rr.History, entry)
	return rr, nil
}

// GetReturn возвращает заявку по идентификатору.
func (s *Service) GetReturn(ctx context.Context, returnID string) (domain.ReturnRequest, error) {
	return s.returns.Get(ctx, returnID)
}

// ListByUser возвращает заявки пользователя, свежие первыми.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ReturnRequest, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.returns.ListByUser(ctx, userID, limit)
}

func (s *Service) notify(event domain.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(event)
}
