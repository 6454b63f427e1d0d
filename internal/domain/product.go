package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — справочная карточка товара. Цена позиции всегда берётся отсюда,
// а не из запроса клиента.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
