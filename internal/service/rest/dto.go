package rest

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// saleItemRequest — позиция продажи во входящем запросе.
// Цена клиентом не передаётся: её назначает сервер из справочника.
type saleItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,gt=0"`
}

// createSaleRequest — тело POST /api/v1/sales.
type createSaleRequest struct {
	BranchID   string            `json:"branch_id" binding:"required"`
	CustomerID string            `json:"customer_id" binding:"required"`
	Items      []saleItemRequest `json:"items" binding:"required,min=1,dive"`
}

// updateSaleRequest — тело PUT /api/v1/sales/{sale_id}.
// cancel=true отменяет продажу целиком вместе с позициями.
type updateSaleRequest struct {
	BranchID   string            `json:"branch_id" binding:"required"`
	CustomerID string            `json:"customer_id" binding:"required"`
	Items      []saleItemRequest `json:"items" binding:"required,min=1,dive"`
	Cancel     bool              `json:"cancel"`
}

// saleItemResponse — позиция продажи в ответе API.
type saleItemResponse struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Quantity     int32  `json:"quantity"`
	Price        string `json:"price"`
	DiscountRate string `json:"discount_rate"`
	Subtotal     string `json:"subtotal"`
	Canceled     bool   `json:"canceled"`
}

// saleResponse — продажа в ответе API. Сумма всегда вычисляется из позиций.
type saleResponse struct {
	ID          string             `json:"id"`
	Number      int64              `json:"number"`
	BranchID    string             `json:"branch_id"`
	CustomerID  string             `json:"customer_id"`
	Status      string             `json:"status"`
	Items       []saleItemResponse `json:"items"`
	TotalAmount string             `json:"total_amount"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// timelineEventResponse — событие ленты продажи.
type timelineEventResponse struct {
	SaleID   string    `json:"sale_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// listSalesResponse — ответ GET /api/v1/sales.
type listSalesResponse struct {
	Sales      []saleResponse `json:"sales"`
	TotalCount int            `json:"total_count"`
}

// errorResponse — единый формат ошибки API.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

// bindingErrorFields переводит структурные ошибки go-playground/validator
// в тот же формат полей, что и бизнес-валидация.
func bindingErrorFields(err error) []domain.FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	fields := make([]domain.FieldError, 0, len(verrs))
	for _, ferr := range verrs {
		fields = append(fields, domain.FieldError{
			Field:   ferr.Field(),
			Message: "failed validation rule: " + ferr.Tag(),
		})
	}
	return fields
}
