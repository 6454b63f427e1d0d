package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// saleRepositoryInMemory — простая in-memory реализация SaleRepository.
type saleRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Sale
}

// NewSaleRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewSaleRepository() domain.SaleRepository {
	return &saleRepositoryInMemory{
		items: make(map[string]domain.Sale),
	}
}

// Create сохраняет новую продажу, следя за уникальностью ID и сквозного номера.
func (r *saleRepositoryInMemory) Create(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[sale.ID]; exists {
		return domain.Sale{}, domain.ErrSaleVersionConflict
	}
	for _, existing := range r.items {
		if existing.Number == sale.Number {
			return domain.Sale{}, domain.ErrSaleNumberConflict
		}
	}

	// Сохраняем копию позиций, чтобы избежать мутаций извне.
	sale.Items = cloneItems(sale.Items)
	r.items[sale.ID] = sale
	return sale, nil
}

// Get возвращает продажу или ErrSaleNotFound, если её нет.
func (r *saleRepositoryInMemory) Get(ctx context.Context, id string) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sale, ok := r.items[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	sale.Items = cloneItems(sale.Items)
	return sale, nil
}

// ListByCustomer возвращает продажи клиента, ограничивая выборку limit (если >0).
func (r *saleRepositoryInMemory) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Sale, 0, len(r.items))
	for _, sale := range r.items {
		if sale.CustomerID != customerID {
			continue
		}
		sale.Items = cloneItems(sale.Items)
		result = append(result, sale)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Number > result[j].Number
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Update перезаписывает продажу, проверяя версию (optimistic locking).
func (r *saleRepositoryInMemory) Update(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[sale.ID]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	if current.Version != sale.Version {
		return domain.Sale{}, domain.ErrSaleVersionConflict
	}

	sale.Version++
	sale.Items = cloneItems(sale.Items)
	r.items[sale.ID] = sale
	return sale, nil
}

// LastNumber возвращает максимальный присвоенный сквозной номер.
func (r *saleRepositoryInMemory) LastNumber(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var last int64
	for _, sale := range r.items {
		if sale.Number > last {
			last = sale.Number
		}
	}
	return last, nil
}

func cloneItems(items []domain.SaleItem) []domain.SaleItem {
	if items == nil {
		return nil
	}
	cloned := make([]domain.SaleItem, len(items))
	copy(cloned, items)
	return cloned
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
