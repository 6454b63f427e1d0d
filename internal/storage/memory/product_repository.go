package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// ProductRepository — in-memory справочник товаров. Экспортируется как
// конкретный тип: Put используется при посеве данных и в тестах.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает пустой in-memory справочник.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		items: make(map[string]domain.Product),
	}
}

// Get возвращает товар или ErrProductNotFound.
func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Upsert добавляет или обновляет товар, сохраняя исходный CreatedAt.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.items[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	}
	r.items[product.ID] = product
	return nil
}

// Put кладёт товар в справочник, перезаписывая существующий.
func (r *ProductRepository) Put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[product.ID] = product
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
