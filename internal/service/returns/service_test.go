package returns_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/fms/internal/domain"
	"github.com/vladislavdragonenkov/fms/internal/service/returns"
	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

type fixture struct {
	svc     *returns.Service
	outbox  *memory.OutboxRepository
	orders  *memory.OrderRepository
	inv     *memory.InventoryRepository
	orderID string
	itemID  string
}

// newFixture создаёт доставленный заказ: 2 единицы prod-1/M по 2500.
func newFixture(t *testing.T, deliveredAgo time.Duration) *fixture {
	t.Helper()
	ctx := context.Background()

	inv := memory.NewInventoryRepository()
	ordersRepo := memory.NewOrderRepository(inv)
	outbox := memory.NewOutboxRepository()
	returnsRepo := memory.NewReturnRepository(outbox)

	require.NoError(t, inv.Put(ctx, domain.ProductStock{ProductID: "prod-1", Size: domain.SizeM, Qty: 10}))

	now := time.Now().UTC()
	delivered := now.Add(-deliveredAgo)
	order := domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: domain.OrderStatusDelivered,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "prod-1", Size: domain.SizeM, Qty: 2, PriceMinor: 2500, CreatedAt: now},
		},
		ItemsMinor:  5000,
		TotalMinor:  5000,
		PaymentRef:  "pay-1",
		DeliveredAt: &delivered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, ordersRepo.Create(ctx, order))

	return &fixture{
		svc:     returns.NewService(returnsRepo, ordersRepo, nil, 0, nil),
		outbox:  outbox,
		orders:  ordersRepo,
		inv:     inv,
		orderID: order.ID,
		itemID:  "item-1",
	}
}

func (f *fixture) requestInput() returns.RequestReturnInput {
	return returns.RequestReturnInput{
		OrderID: f.orderID,
		UserID:  "user-1",
		Items: []returns.ReturnItemInput{
			{OrderItemID: f.itemID, Qty: 1, Reason: "wrong size"},
		},
	}
}

func TestRequestReturn_WithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 48*time.Hour)

	rr, err := f.svc.RequestReturn(ctx, f.requestInput())
	require.NoError(t, err)

	require.Equal(t, domain.ReturnStatusRequested, rr.Status)
	require.Equal(t, int64(2500), rr.RefundMinor)
	require.Len(t, rr.History, 1)
	require.Equal(t, "prod-1", rr.Items[0].ProductID)
}

func TestRequestReturn_WindowBoundary(t *testing.T) {
	ctx := context.Background()

	// День 7 принимается.
	f := newFixture(t, 7*24*time.Hour-time.Minute)
	_, err := f.svc.RequestReturn(ctx, f.requestInput())
	require.NoError(t, err)

	// День 8 отклоняется как нарушение политики.
	f = newFixture(t, 8*24*time.Hour)
	_, err = f.svc.RequestReturn(ctx, f.requestInput())
	require.ErrorIs(t, err, domain.ErrReturnWindowExpired)
	require.True(t, domain.IsPolicyViolation(err))
}

func TestRequestReturn_QtyPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	in := f.requestInput()
	in.Items[0].Qty = 3 // заказано 2
	_, err := f.svc.RequestReturn(ctx, in)
	require.ErrorIs(t, err, domain.ErrReturnQtyExceeded)

	// Одна и та же позиция двумя строками — тоже превышение.
	in = f.requestInput()
	in.Items = append(in.Items, returns.ReturnItemInput{OrderItemID: f.itemID, Qty: 1})
	_, err = f.svc.RequestReturn(ctx, in)
	require.ErrorIs(t, err, domain.ErrReturnQtyExceeded)
}

func TestRequestReturn_OrderNotDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	order, err := f.orders.Get(ctx, f.orderID)
	require.NoError(t, err)
	order.Status = domain.OrderStatusShipped
	order.DeliveredAt = nil
	require.NoError(t, f.orders.Save(ctx, order, domain.HistoryEntry{
		Status: string(domain.OrderStatusShipped), Occurred: time.Now().UTC(),
	}))

	_, err = f.svc.RequestReturn(ctx, f.requestInput())
	require.ErrorIs(t, err, domain.ErrOrderNotDelivered)
	require.True(t, domain.IsPolicyViolation(err))
}

func TestSchedulePickup_LogisticsChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	rr, err := f.svc.RequestReturn(ctx, f.requestInput())
	require.NoError(t, err)

	rr, err = f.svc.SchedulePickup(ctx, rr.ID, "logistics", "courier booked")
	require.NoError(t, err)
	require.Equal(t, domain.ReturnStatusPickupScheduled, rr.Status)

	rr, err = f.svc.SchedulePickup(ctx, rr.ID, "warehouse", "arrived at warehouse")
	require.NoError(t, err)
	require.Equal(t, domain.ReturnStatusQCPending, rr.Status)

	// Из qc_pending логистический шаг уже недопустим.
	_, err = f.svc.SchedulePickup(ctx, rr.ID, "logistics", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRecordInspection_PassedEnqueuesExactlyOneJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	rr, err := f.svc.RequestReturn(ctx, f.requestInput())
	require.NoError(t, err)

	rr, err = f.svc.RecordInspection(ctx, rr.ID, returns.InspectionPassed, []returns.InspectionItemInput{
		{OrderItemID: f.itemID, Condition: "resellable"},
	}, "qc-operator", "ok")
	require.NoError(t, err)
	require.Equal(t, domain.ReturnStatusQCPassed, rr.Status)
	require.Equal(t, "resellable", rr.Items[0].Condition)

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventReturnApproved, pending[0].EventType)
	require.Equal(t, rr.ID, pending[0].AggregateID)

	job, err := returnsJobFromPayload(pending[0].Payload)
	require.NoError(t, err)
	require.Equal(t, rr.ID, job.ReturnRequestID)
	require.Equal(t, int64(2500), job.RefundMinor)

	// Повторная инспекция недопустима: задание остаётся единственным.
	_, err = f.svc.RecordInspection(ctx, rr.ID, returns.InspectionPassed, nil, "qc-operator", "")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Len(t, f.outbox.AllPending(), 1)
}

func TestRecordInspection_FailedSkipsOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 24*time.Hour)

	rr, err := f.svc.RequestReturn(ctx, f.requestInput())
	require.NoError(t, err)

	rr, err = f.svc.RecordInspection(ctx, rr.ID, returns.InspectionFailed, nil, "qc-operator", "damaged by customer")
	require.NoError(t, err)
	require.Equal(t, domain.ReturnStatusQCFailed, rr.Status)
	require.Empty(t, f.outbox.AllPending())
}

func returnsJobFromPayload(payload []byte) (domain.SettlementJob, error) {
	var job domain.SettlementJob
	err := json.Unmarshal(payload, &job)
	return job, err
}
