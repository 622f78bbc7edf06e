package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

func TestParseSettlementJob_OutboxEnvelope(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(domain.SettlementJob{
		ReturnRequestID: "return-1",
		OrderID:         "order-1",
		UserID:          "user-1",
		RefundMinor:     2500,
	})
	if err != nil {
		t.Fatal(err)
	}

	envelope, err := json.Marshal(map[string]interface{}{
		"id":           "outbox-1",
		"event_type":   domain.EventReturnApproved,
		"payload":      json.RawMessage(payload),
		"published_at": time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}

	job, err := ParseSettlementJob(&sarama.ConsumerMessage{Value: envelope})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if job.ReturnRequestID != "return-1" {
		t.Errorf("expected return-1, got %s", job.ReturnRequestID)
	}
	if job.RefundMinor != 2500 {
		t.Errorf("expected refund 2500, got %d", job.RefundMinor)
	}
}

func TestParseSettlementJob_DirectJob(t *testing.T) {
	t.Parallel()

	value, err := json.Marshal(domain.SettlementJob{
		ReturnRequestID: "return-2",
		OrderID:         "order-2",
	})
	if err != nil {
		t.Fatal(err)
	}

	job, err := ParseSettlementJob(&sarama.ConsumerMessage{Value: value})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if job.OrderID != "order-2" {
		t.Errorf("expected order-2, got %s", job.OrderID)
	}
}

func TestParseSettlementJob_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseSettlementJob(&sarama.ConsumerMessage{Value: []byte("not json")}); err == nil {
		t.Fatal("expected error for invalid json")
	}

	// Валидный JSON без идентификатора возврата тоже отклоняется.
	if _, err := ParseSettlementJob(&sarama.ConsumerMessage{Value: []byte(`{"order_id":"order-3"}`)}); err == nil {
		t.Fatal("expected error for job without return_request_id")
	}
}

func TestSettlementJobKey(t *testing.T) {
	t.Parallel()

	if key := SettlementJobKey("return-1"); key != "return-1" {
		t.Errorf("expected return-1, got %s", key)
	}
}
