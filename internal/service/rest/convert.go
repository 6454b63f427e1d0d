package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// toDomainItems собирает позиции агрегата из запроса.
// Идентификаторы позиций назначает сервер.
func toDomainItems(items []saleItemRequest) []domain.SaleItem {
	now := time.Now().UTC()
	result := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		result = append(result, domain.SaleItem{
			ID:        uuid.NewString(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: now,
		})
	}
	return result
}

func toSaleResponse(sale domain.Sale) saleResponse {
	items := make([]saleItemResponse, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			Price:        item.Price.StringFixed(2),
			DiscountRate: domain.DiscountRate(item.Quantity).String(),
			Subtotal:     item.Subtotal().StringFixed(2),
			Canceled:     item.Canceled,
		})
	}

	return saleResponse{
		ID:          sale.ID,
		Number:      sale.Number,
		BranchID:    sale.BranchID,
		CustomerID:  sale.CustomerID,
		Status:      string(sale.Status),
		Items:       items,
		TotalAmount: sale.TotalAmount().StringFixed(2),
		Version:     sale.Version,
		CreatedAt:   sale.CreatedAt,
		UpdatedAt:   sale.UpdatedAt,
	}
}

func toTimelineResponse(events []domain.TimelineEvent) []timelineEventResponse {
	result := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, timelineEventResponse{
			SaleID:   event.SaleID,
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	return result
}
