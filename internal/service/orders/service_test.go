package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/orders"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func newService(t *testing.T) (*orders.Service, *memory.InventoryRepository) {
	t.Helper()

	inv := memory.NewInventoryRepository()
	repo := memory.NewOrderRepository(inv)
	return orders.NewService(repo, nil, orders.DefaultPricing(), nil), inv
}

func seed(t *testing.T, inv *memory.InventoryRepository, productID, size string, qty int32) {
	t.Helper()
	require.NoError(t, inv.Put(context.Background(), domain.ProductStock{ProductID: productID, Size: size, Qty: qty}))
}

func placeInput() orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		UserID:     "user-1",
		PaymentRef: "pay-1",
		Items: []orders.PlaceOrderItem{
			{ProductID: "prod-1", Size: domain.SizeM, Qty: 2, PriceMinor: 2500},
		},
	}
}

func TestPlaceOrder_ComputesBreakdownAndDebitsStock(t *testing.T) {
	ctx := context.Background()
	svc, inv := newService(t)
	seed(t, inv, "prod-1", domain.SizeM, 5)

	order, err := svc.PlaceOrder(ctx, placeInput())
	require.NoError(t, err)

	require.Equal(t, domain.OrderStatusProcessing, order.Status)
	require.Equal(t, int64(5000), order.ItemsMinor)
	require.Equal(t, int64(500), order.TaxMinor) // 10% от суммы позиций
	require.Equal(t, int64(500), order.ShippingMinor)
	require.Equal(t, int64(6000), order.TotalMinor)
	require.Len(t, order.History, 1)
	require.Equal(t, string(domain.OrderStatusProcessing), order.History[0].Status)

	stocks, err := inv.Get(ctx, "prod-1")
	require.NoError(t, err)
	require.Equal(t, int32(3), stocks[0].Qty)
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cases := []struct {
		name    string
		mutate  func(*orders.PlaceOrderInput)
		wantErr error
	}{
		{"missing user", func(in *orders.PlaceOrderInput) { in.UserID = "" }, domain.ErrUserRequired},
		{"no items", func(in *orders.PlaceOrderInput) { in.Items = nil }, domain.ErrItemsRequired},
		{"missing product", func(in *orders.PlaceOrderInput) { in.Items[0].ProductID = "" }, domain.ErrProductRequired},
		{"bad size", func(in *orders.PlaceOrderInput) { in.Items[0].Size = "XXL" }, domain.ErrSizeInvalid},
		{"zero qty", func(in *orders.PlaceOrderInput) { in.Items[0].Qty = 0 }, domain.ErrItemQtyInvalid},
		{"negative price", func(in *orders.PlaceOrderInput) { in.Items[0].PriceMinor = -1 }, domain.ErrItemPriceInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := placeInput()
			tc.mutate(&in)
			_, err := svc.PlaceOrder(ctx, in)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPlaceOrder_StockConflictNamesItem(t *testing.T) {
	ctx := context.Background()
	svc, inv := newService(t)
	seed(t, inv, "prod-1", domain.SizeM, 1)

	_, err := svc.PlaceOrder(ctx, placeInput())
	require.ErrorIs(t, err, domain.ErrStockConflict)

	var conflict *domain.StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "prod-1", conflict.ProductID)
	require.Equal(t, domain.SizeM, conflict.Size)
}

func TestAdvanceStatus_ForwardOnlyChain(t *testing.T) {
	ctx := context.Background()
	svc, inv := newService(t)
	seed(t, inv, "prod-1", domain.SizeM, 5)

	order, err := svc.PlaceOrder(ctx, placeInput())
	require.NoError(t, err)

	// Перепрыгнуть через шаг нельзя.
	_, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusShipped, "ops", orders.StatusExtra{
		Courier: "dhl", TrackingRef: "trk-1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Назад нельзя.
	_, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusProcessing, "ops", orders.StatusExtra{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	chain := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusPacking,
		domain.OrderStatusShipped,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
	}
	for _, next := range chain {
		order, err = svc.AdvanceStatus(ctx, order.ID, next, "ops", orders.StatusExtra{
			Courier: "dhl", TrackingRef: "trk-1",
		})
		require.NoError(t, err, "transition to %s", next)
	}

	require.Equal(t, domain.OrderStatusDelivered, order.Status)
	require.NotNil(t, order.DeliveredAt)
	// Первая запись + пять переходов.
	require.Len(t, order.History, 6)

	// Терминальный статус: дальше некуда.
	_, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusDelivered, "ops", orders.StatusExtra{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAdvanceStatus_ShippedRequiresCourierFields(t *testing.T) {
	ctx := context.Background()
	svc, inv := newService(t)
	seed(t, inv, "prod-1", domain.SizeM, 5)

	order, err := svc.PlaceOrder(ctx, placeInput())
	require.NoError(t, err)

	for _, next := range []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusPacking} {
		order, err = svc.AdvanceStatus(ctx, order.ID, next, "ops", orders.StatusExtra{})
		require.NoError(t, err)
	}

	_, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusShipped, "ops", orders.StatusExtra{TrackingRef: "trk-1"})
	require.ErrorIs(t, err, domain.ErrCourierRequired)

	_, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusShipped, "ops", orders.StatusExtra{Courier: "dhl"})
	require.ErrorIs(t, err, domain.ErrTrackingRefRequired)

	order, err = svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusShipped, "ops", orders.StatusExtra{
		Courier: "dhl", TrackingRef: "trk-1",
	})
	require.NoError(t, err)
	require.Equal(t, "dhl", order.Courier)
	require.Equal(t, "trk-1", order.TrackingRef)
}

func TestAdvanceStatus_UnknownOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.AdvanceStatus(ctx, "missing", domain.OrderStatusConfirmed, "ops", orders.StatusExtra{})
	require.True(t, errors.Is(err, domain.ErrOrderNotFound))
}

func TestListByUser(t *testing.T) {
	ctx := context.Background()
	svc, inv := newService(t)
	seed(t, inv, "prod-1", domain.SizeM, 50)

	for i := 0; i < 3; i++ {
		_, err := svc.PlaceOrder(ctx, placeInput())
		require.NoError(t, err)
	}

	listed, err := svc.ListByUser(ctx, "user-1", 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	_, err = svc.ListByUser(ctx, "", 10)
	require.ErrorIs(t, err, domain.ErrUserRequired)
}
