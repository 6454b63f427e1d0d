package stock

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// MockService — конфигурируемая заглушка StockService для тестов и локального запуска.
type MockService struct {
	mu sync.Mutex

	// Available — ответ по умолчанию для всех товаров.
	Available bool
	// Unavailable перечисляет товары, для которых склад отвечает отказом.
	Unavailable map[string]bool
	// CheckErr возвращается из каждого вызова, если задана.
	CheckErr error

	CheckCalls int
}

// NewMockService возвращает mock, подтверждающий доступность по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		Available:   true,
		Unavailable: make(map[string]bool),
	}
}

// CheckAvailability возвращает заранее настроенный ответ и считает вызовы.
func (m *MockService) CheckAvailability(ctx context.Context, productID string, qty int32, branchID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckCalls++
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	if m.Unavailable[productID] {
		return false, nil
	}
	return m.Available, nil
}

// MarkUnavailable помечает товар как отсутствующий на складе.
func (m *MockService) MarkUnavailable(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unavailable[productID] = true
}

var _ domain.StockService = (*MockService)(nil)
