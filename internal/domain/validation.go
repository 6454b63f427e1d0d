package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FieldError описывает нарушение одного бизнес-правила на конкретном поле.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult собирает все нарушения правил в порядке проверки.
type ValidationResult struct {
	Errors []FieldError
}

// IsValid сообщает, прошла ли продажа все проверки.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validate прогоняет продажу через полный набор правил. Правила независимы:
// проверка не останавливается на первом нарушении, чтобы вернуть их все разом.
func (s *Sale) Validate() ValidationResult {
	var result ValidationResult

	if s.Number <= 0 {
		result.add("Number", "sale number must be greater than zero")
	}
	if s.CustomerID == "" {
		result.add("CustomerID", "customer_id is required")
	}
	if s.BranchID == "" {
		result.add("BranchID", "branch_id is required")
	}
	if len(s.Items) == 0 {
		result.add("Items", "sale must contain at least one item")
	}

	for idx, item := range s.Items {
		if item.ProductID == "" {
			result.add(itemField(idx, "ProductID"), "product_id is required")
		}
		if item.Quantity <= 0 {
			result.add(itemField(idx, "Quantity"), "quantity must be greater than zero")
		}
		if item.Quantity > MaxItemQuantity {
			result.add(itemField(idx, "Quantity"),
				fmt.Sprintf("quantity must not exceed %d units per product", MaxItemQuantity))
		}
		if item.Price.LessThan(decimal.Zero) {
			result.add(itemField(idx, "Price"), "price must be non-negative")
		}
	}

	return result
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

func itemField(idx int, name string) string {
	return fmt.Sprintf("Items[%d].%s", idx, name)
}
