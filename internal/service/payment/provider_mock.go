package payment

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// MockProvider — конфигурируемая заглушка платёжного провайдера. Используется
// в тестах и в окружениях без внешнего шлюза.
type MockProvider struct {
	mu sync.Mutex

	IntentStatus string
	IntentErr    error

	CreateCalls int
	lastIntent  domain.PaymentIntent
}

// NewMockProvider возвращает mock с успешным сценарием по умолчанию.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		IntentStatus: domain.PaymentStatusRequiresPayment,
	}
}

// CreateIntent возвращает заранее настроенный результат и считает вызовы.
func (m *MockProvider) CreateIntent(orderID string, amountMinor int64, currency string) (domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.IntentErr != nil {
		return domain.PaymentIntent{}, m.IntentErr
	}

	intent := domain.PaymentIntent{
		ID:           "pi_" + uuid.NewString(),
		ClientSecret: fmt.Sprintf("secret_%s", uuid.NewString()),
		Status:       m.IntentStatus,
	}
	m.lastIntent = intent
	return intent, nil
}

// LastIntent возвращает последний выданный intent (для тестов).
func (m *MockProvider) LastIntent() domain.PaymentIntent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIntent
}

var _ domain.PaymentProvider = (*MockProvider)(nil)
