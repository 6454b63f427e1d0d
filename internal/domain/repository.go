package domain

import "context"

// SaleRepository описывает требования к хранилищу продаж.
type SaleRepository interface {
	// Create сохраняет новую продажу. ErrSaleNumberConflict — номер уже занят.
	Create(ctx context.Context, sale Sale) (Sale, error)
	// Update применяет изменения с учётом optimistic locking.
	Update(ctx context.Context, sale Sale) (Sale, error)
	// Get возвращает продажу по идентификатору или ErrSaleNotFound.
	Get(ctx context.Context, id string) (Sale, error)
	// ListByCustomer возвращает продажи клиента, ограничивая выборку limit (если >0).
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Sale, error)
	// LastNumber возвращает последний присвоенный сквозной номер (0, если продаж нет).
	LastNumber(ctx context.Context) (int64, error)
}

// ProductRepository описывает доступ к справочнику товаров.
type ProductRepository interface {
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// Upsert добавляет или обновляет карточку товара.
	Upsert(ctx context.Context, product Product) error
}
