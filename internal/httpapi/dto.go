package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

type historyEntryDTO struct {
	Status   string    `json:"status"`
	Actor    string    `json:"actor,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	Occurred time.Time `json:"occurred"`
}

type orderItemDTO struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Size       string `json:"size"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

type orderDTO struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Status        string            `json:"status"`
	Items         []orderItemDTO    `json:"items"`
	ItemsMinor    int64             `json:"items_minor"`
	TaxMinor      int64             `json:"tax_minor"`
	ShippingMinor int64             `json:"shipping_minor"`
	TotalMinor    int64             `json:"total_minor"`
	PaymentRef    string            `json:"payment_ref,omitempty"`
	Courier       string            `json:"courier,omitempty"`
	TrackingRef   string            `json:"tracking_ref,omitempty"`
	DeliveredAt   *time.Time        `json:"delivered_at,omitempty"`
	History       []historyEntryDTO `json:"history"`
	Version       int64             `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toOrderDTO(order domain.Order) orderDTO {
	dto := orderDTO{
		ID:            order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		ItemsMinor:    order.ItemsMinor,
		TaxMinor:      order.TaxMinor,
		ShippingMinor: order.ShippingMinor,
		TotalMinor:    order.TotalMinor,
		PaymentRef:    order.PaymentRef,
		Courier:       order.Courier,
		TrackingRef:   order.TrackingRef,
		DeliveredAt:   order.DeliveredAt,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, orderItemDTO{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Size:       item.Size,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	dto.History = toHistoryDTO(order.History)
	return dto
}

type returnItemDTO struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	Qty         int32  `json:"qty"`
	Reason      string `json:"reason,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

type returnDTO struct {
	ID          string            `json:"id"`
	OrderID     string            `json:"order_id"`
	UserID      string            `json:"user_id"`
	Status      string            `json:"status"`
	Items       []returnItemDTO   `json:"items"`
	RefundMinor int64             `json:"refund_minor"`
	History     []historyEntryDTO `json:"history"`
	Version     int64             `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toReturnDTO(rr domain.ReturnRequest) returnDTO {
	dto := returnDTO{
		ID:          rr.ID,
		OrderID:     rr.OrderID,
		UserID:      rr.UserID,
		Status:      string(rr.Status),
		RefundMinor: rr.RefundMinor,
		Version:     rr.Version,
		CreatedAt:   rr.CreatedAt,
		UpdatedAt:   rr.UpdatedAt,
	}
	for _, item := range rr.Items {
		dto.Items = append(dto.Items, returnItemDTO{
			OrderItemID: item.OrderItemID,
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			Reason:      item.Reason,
			Condition:   item.Condition,
		})
	}
	dto.History = toHistoryDTO(rr.History)
	return dto
}

func toHistoryDTO(entries []domain.HistoryEntry) []historyEntryDTO {
	result := make([]historyEntryDTO, 0, len(entries))
	for _, entry := range entries {
		result = append(result, historyEntryDTO{
			Status:   entry.Status,
			Actor:    entry.Actor,
			Comment:  entry.Comment,
			Occurred: entry.Occurred,
		})
	}
	return result
}

type transactionDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	AmountMinor int64     `json:"amount_minor"`
	RefKind     string    `json:"ref_kind"`
	RefID       string    `json:"ref_id"`
	GatewayRef  string    `json:"gateway_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionDTOs(txs []domain.Transaction) []transactionDTO {
	result := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		result = append(result, transactionDTO{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Status:      string(tx.Status),
			AmountMinor: tx.AmountMinor,
			RefKind:     string(tx.Ref.Kind),
			RefID:       tx.Ref.ID,
			GatewayRef:  tx.GatewayRef,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return result
}

type stockDTO struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int32  `json:"qty"`
}

func toStockDTOs(stocks []domain.ProductStock) []stockDTO {
	result := make([]stockDTO, 0, len(stocks))
	for _, stock := range stocks {
		result = append(result, stockDTO{ProductID: stock.ProductID, Size: stock.Size, Qty: stock.Qty})
	}
	return result
}
