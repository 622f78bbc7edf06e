package domain

import "time"

// OrderStatus описывает этап исполнения заказа.
type OrderStatus string

const (
	// OrderStatusProcessing — заказ создан, сток зарезервирован, идёт обработка.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusConfirmed — заказ подтверждён и передан на сборку.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPacking — заказ комплектуется на складе.
	OrderStatusPacking OrderStatus = "packing"
	// OrderStatusShipped — заказ передан курьерской службе.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery — заказ у курьера, едет к клиенту.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ доставлен; терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
)

// nextOrderStatus задаёт линейную цепочку статусов. Перепрыгивать через шаг нельзя.
var nextOrderStatus = map[OrderStatus]OrderStatus{
	OrderStatusProcessing:     OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusPacking,
	OrderStatusPacking:        OrderStatusShipped,
	OrderStatusShipped:        OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusDelivered {
		return true
	}
	_, ok := nextOrderStatus[s]
	return ok
}

// Terminal возвращает true для статусов, из которых переходов нет.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered
}

// CanAdvanceTo проверяет допустимость перехода: только на следующий шаг цепочки.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return nextOrderStatus[s] == next
}

// HistoryEntry — одна запись append-only журнала статусов заказа или возврата.
type HistoryEntry struct {
	Status   string
	Actor    string
	Comment  string
	Occurred time.Time
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации в возвратах и аудите.
	ID string
	// ProductID — идентификатор товара.
	ProductID string
	// Size — размерный вариант, по которому списывался сток.
	Size string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — снапшот цены за единицу в минимальных денежных единицах.
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа, его позиции и журнал статусов.
type Order struct {
	ID     string
	UserID string
	Status OrderStatus

	Items []OrderItem

	// Денежная разбивка заказа в минимальных единицах.
	ItemsMinor    int64
	TaxMinor      int64
	ShippingMinor int64
	TotalMinor    int64

	// PaymentRef — ссылка платёжного шлюза, по которой делается возврат средств.
	PaymentRef string

	// Courier и TrackingRef заполняются при переходе в shipped.
	Courier     string
	TrackingRef string

	// DeliveredAt ставится при переходе в delivered; от него считается окно возврата.
	DeliveredAt *time.Time

	History []HistoryEntry

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemByID возвращает позицию заказа по её идентификатору.
func (o *Order) ItemByID(itemID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}

	// Сверяем сумму позиций с заявленной разбивкой: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductRequired)
		}
		if !ValidSize(item.Size) {
			errs = append(errs, ErrSizeInvalid)
		}
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.ItemsMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if o.TaxMinor < 0 || o.ShippingMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if o.TotalMinor != o.ItemsMinor+o.TaxMinor+o.ShippingMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
