package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func TestMockGateway_SuccessfulRefund(t *testing.T) {
	t.Parallel()

	gw := NewMockGateway()

	ref, err := gw.Refund(context.Background(), "pay-1", 5000)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if ref == "" {
		t.Fatal("expected non-empty gateway ref")
	}
	if gw.RefundCalls() != 1 {
		t.Fatalf("expected 1 refund call, got %d", gw.RefundCalls())
	}
	if gw.LastRef() != ref {
		t.Fatalf("expected last ref %s, got %s", ref, gw.LastRef())
	}

	// Ссылки различаются между вызовами: каждая операция уникальна.
	second, err := gw.Refund(context.Background(), "pay-1", 5000)
	if err != nil {
		t.Fatalf("second refund failed: %v", err)
	}
	if second == ref {
		t.Fatal("expected distinct gateway refs")
	}
}

func TestMockGateway_ConfiguredFailure(t *testing.T) {
	t.Parallel()

	gw := NewMockGateway()
	gw.RefundErr = domain.ErrExternalFailure

	if _, err := gw.Refund(context.Background(), "pay-1", 5000); !errors.Is(err, domain.ErrExternalFailure) {
		t.Fatalf("expected configured error, got %v", err)
	}
	if gw.RefundCalls() != 1 {
		t.Fatalf("expected 1 refund call, got %d", gw.RefundCalls())
	}
}
