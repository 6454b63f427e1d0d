package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus описывает жизненный цикл продажи.
type SaleStatus string

const (
	// SaleStatusPending — продажа создана, но склад ещё не подтвердил позиции.
	SaleStatusPending SaleStatus = "pending"
	// SaleStatusApproved — хотя бы одна позиция подтверждена складом.
	SaleStatusApproved SaleStatus = "approved"
	// SaleStatusCanceled — продажа отменена; терминальный статус.
	SaleStatusCanceled SaleStatus = "canceled"
)

// Sale агрегирует продажу в филиале: позиции, статус и сквозной номер.
type Sale struct {
	ID         string
	Number     int64
	BranchID   string
	CustomerID string
	Status     SaleStatus
	Items      []SaleItem
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSale создаёт продажу в статусе pending без номера.
// Номер присваивается позже через GenerateNumber.
func NewSale(id, branchID, customerID string, items []SaleItem) *Sale {
	now := time.Now().UTC()
	return &Sale{
		ID:         id,
		BranchID:   branchID,
		CustomerID: customerID,
		Status:     SaleStatusPending,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// GenerateNumber присваивает следующий сквозной номер после lastNumber.
// Статус при этом не меняется.
func (s *Sale) GenerateNumber(lastNumber int64) {
	s.Number = lastNumber + 1
	s.touch()
}

// Approve переводит продажу в approved. Повторный вызов безопасен.
func (s *Sale) Approve() {
	s.Status = SaleStatusApproved
	s.touch()
}

// Cancel переводит продажу в canceled. Выход из canceled не предусмотрен:
// повторные бизнес-операции отклоняет оркестратор, а не агрегат.
func (s *Sale) Cancel() {
	s.Status = SaleStatusCanceled
	s.touch()
}

// Update заменяет набор позиций. При cancelAll продажа принудительно
// отменяется; иначе статус остаётся прежним — решение approve/pending
// принимает оркестратор после проверки склада.
func (s *Sale) Update(items []SaleItem, cancelAll bool) {
	s.Items = items
	if cancelAll {
		s.Status = SaleStatusCanceled
	}
	s.touch()
}

// TotalAmount возвращает сумму подытогов неотменённых позиций.
// Сумма всегда вычисляется из позиций и нигде не хранится отдельно.
func (s *Sale) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ActiveItemCount возвращает количество неотменённых позиций.
func (s *Sale) ActiveItemCount() int {
	count := 0
	for _, item := range s.Items {
		if !item.Canceled {
			count++
		}
	}
	return count
}

// touch двигает UpdatedAt строго вперёд: после любой мутации
// UpdatedAt > CreatedAt, даже если часы не успели сдвинуться.
func (s *Sale) touch() {
	now := time.Now().UTC()
	if !now.After(s.UpdatedAt) {
		now = s.UpdatedAt.Add(time.Nanosecond)
	}
	s.UpdatedAt = now
}
