package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

const (
	// maxSaveRetries ограничивает повторы при конфликте версий: конкурентная
	// смена статуса перечитывается и применяется заново.
	maxSaveRetries = 3

	defaultListLimit = 100
)

// Pricing задаёт денежную политику оформления заказа: плоская ставка налога
// в базисных пунктах и фиксированная стоимость доставки.
type Pricing struct {
	TaxRateBps        int64
	ShippingFlatMinor int64
}

// DefaultPricing — политика по умолчанию: 10% налога, доставка 500.
func DefaultPricing() Pricing {
	return Pricing{TaxRateBps: 1000, ShippingFlatMinor: 500}
}

// Service реализует жизненный цикл заказа поверх доменного репозитория.
type Service struct {
	repo     domain.OrderRepository
	notifier domain.Notifier
	pricing  Pricing
	logger   *log.Entry
}

// NewService конструирует сервис заказов. notifier может быть nil.
func NewService(repo domain.OrderRepository, notifier domain.Notifier, pricing Pricing, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders-service")
	}
	if pricing.TaxRateBps < 0 {
		pricing.TaxRateBps = 0
	}
	if pricing.ShippingFlatMinor < 0 {
		pricing.ShippingFlatMinor = 0
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		pricing:  pricing,
		logger:   logger,
	}
}

// PlaceOrderItem — одна позиция оформляемого заказа.
type PlaceOrderItem struct {
	ProductID  string
	Size       string
	Qty        int32
	PriceMinor int64
}

// PlaceOrderInput — параметры оформления заказа.
type PlaceOrderInput struct {
	UserID     string
	PaymentRef string
	Items      []PlaceOrderItem
	Actor      string
}

// PlaceOrder валидирует вход, считает денежную разбивку и создаёт заказ.
// Резервирование стока по всем позициям и вставка заказа происходят одной
// транзакцией репозитория: нехватка остатка по любой позиции отменяет заказ
// целиком и возвращается как *StockConflictError с указанием позиции.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (domain.Order, error) {
	if in.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}
	if len(in.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}

	now := time.Now().UTC()
	actor := in.Actor
	if actor == "" {
		actor = in.UserID
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		UserID:     in.UserID,
		Status:     domain.OrderStatusProcessing,
		PaymentRef: in.PaymentRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var itemsMinor int64
	for _, item := range in.Items {
		if item.ProductID == "" {
			return domain.Order{}, domain.ErrProductRequired
		}
		if !domain.ValidSize(item.Size) {
			return domain.Order{}, domain.ErrSizeInvalid
		}
		if item.Qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}
		if item.PriceMinor < 0 {
			return domain.Order{}, domain.ErrItemPriceInvalid
		}

		order.Items = append(order.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  item.ProductID,
			Size:       item.Size,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
			CreatedAt:  now,
		})
		itemsMinor += int64(item.Qty) * item.PriceMinor
	}

	order.ItemsMinor = itemsMinor
	order.TaxMinor = itemsMinor * s.pricing.TaxRateBps / 10000
	order.ShippingMinor = s.pricing.ShippingFlatMinor
	order.TotalMinor = order.ItemsMinor + order.TaxMinor + order.ShippingMinor

	order.History = []domain.HistoryEntry{{
		Status:   string(domain.OrderStatusProcessing),
		Actor:    actor,
		Comment:  "order placed",
		Occurred: now,
	}}

	if err := s.repo.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalMinor,
	}).Info("order placed")

	s.notify(domain.NotificationEvent{
		Type:     domain.EventOrderPlaced,
		UserID:   order.UserID,
		OrderID:  order.ID,
		Occurred: now,
	})

	return order, nil
}

// StatusExtra — дополнительные поля перехода статуса. Courier и TrackingRef
// обязательны для перехода в shipped.
type StatusExtra struct {
	Courier     string
	TrackingRef string
	Comment     string
}

// AdvanceStatus переводит заказ строго на следующий шаг цепочки статусов.
// delivered — терминальный статус, при переходе в него фиксируется
// DeliveredAt, от которого считается окно возврата. Конфликт версий
// перечитывается и повторяется ограниченное число раз.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, next domain.OrderStatus, actor string, extra StatusExtra) (domain.Order, error) {
	if !next.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	if next == domain.OrderStatusShipped {
		if extra.Courier == "" {
			return domain.Order{}, domain.ErrCourierRequired
		}
		if extra.TrackingRef == "" {
			return domain.Order{}, domain.ErrTrackingRefRequired
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		order, err := s.repo.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if order.Status.Terminal() || !order.Status.CanAdvanceTo(next) {
			return domain.Order{}, fmt.Errorf("advance order %s from %s to %s: %w",
				order.ID, order.Status, next, domain.ErrInvalidTransition)
		}

		now := time.Now().UTC()
		order.Status = next
		order.UpdatedAt = now
		if next == domain.OrderStatusShipped {
			order.Courier = extra.Courier
			order.TrackingRef = extra.TrackingRef
		}
		if next == domain.OrderStatusDelivered {
			order.DeliveredAt = &now
		}

		entry := domain.HistoryEntry{
			Status:   string(next),
			Actor:    actor,
			Comment:  extra.Comment,
			Occurred: now,
		}

		err = s.repo.Save(ctx, order, entry)
		if err == nil {
			s.logger.WithFields(log.Fields{
				"order_id": order.ID,
				"status":   string(next),
				"actor":    actor,
			}).Info("order status advanced")

			s.notify(domain.NotificationEvent{
				Type:     domain.EventOrderStatusChanged,
				UserID:   order.UserID,
				OrderID:  order.ID,
				Metadata: map[string]interface{}{"status": string(next)},
				Occurred: now,
			})

			order.Version++
			order.History = append(order.History, entry)
			return order, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Order{}, err
		}
		lastErr = err
	}

	return domain.Order{}, fmt.Errorf("advance order %s: retries exhausted: %w", orderID, lastErr)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// ListByUser возвращает заказы пользователя, свежие первыми.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *Service) notify(event domain.NotificationEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(event)
}
