package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity — максимум единиц одного товара в позиции.
// Большее количество отклоняется валидацией, а не обрезается.
const MaxItemQuantity = 20

var (
	discountTen    = decimal.NewFromFloat(0.10)
	discountTwenty = decimal.NewFromFloat(0.20)
)

// SaleItem представляет одну позицию продажи. Вне агрегата Sale
// самостоятельной идентичности не имеет.
type SaleItem struct {
	ID        string
	ProductID string
	Quantity  int32
	Price     decimal.Decimal
	Canceled  bool
	CreatedAt time.Time
}

// DiscountRate возвращает ставку скидки как чистую функцию количества:
// 1–3 — без скидки, 4–9 — 10%, от 10 — 20%.
// Количества свыше MaxItemQuantity до расчёта не доходят: их отсекает валидация.
func DiscountRate(qty int32) decimal.Decimal {
	switch {
	case qty >= 10:
		return discountTwenty
	case qty >= 4:
		return discountTen
	default:
		return decimal.Zero
	}
}

// Subtotal возвращает Quantity * Price с учётом скидки.
// Отменённая позиция всегда даёт ноль.
func (i SaleItem) Subtotal() decimal.Decimal {
	if i.Canceled {
		return decimal.Zero
	}
	gross := decimal.NewFromInt32(i.Quantity).Mul(i.Price)
	return gross.Sub(gross.Mul(DiscountRate(i.Quantity)))
}

// Cancel помечает позицию отменённой. Остальные поля не трогаем.
func (i *SaleItem) Cancel() {
	i.Canceled = true
}
