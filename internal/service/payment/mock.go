package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/fms/internal/domain"
)

// MockGateway — конфигурируемая заглушка PaymentGateway для тестов и
// локальной разработки. По умолчанию каждое возмещение успешно и получает
// детерминированную внешнюю ссылку.
type MockGateway struct {
	mu sync.Mutex

	RefundErr error

	refundCalls int
	lastRef     string
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Refund возвращает настроенный результат и считает вызовы.
func (m *MockGateway) Refund(_ context.Context, paymentRef string, amountMinor int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refundCalls++
	if m.RefundErr != nil {
		return "", m.RefundErr
	}

	m.lastRef = fmt.Sprintf("mock-refund-%s-%d", paymentRef, m.refundCalls)
	return m.lastRef, nil
}

// RefundCalls возвращает число выполненных вызовов Refund.
func (m *MockGateway) RefundCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refundCalls
}

// LastRef возвращает последнюю выданную внешнюю ссылку.
func (m *MockGateway) LastRef() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRef
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
