package sales

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/stock"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
)

type managerFixture struct {
	sales    domain.SaleRepository
	products *memory.ProductRepository
	stock    *stock.MockService
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
	manager  Manager
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()

	f := &managerFixture{
		sales:    memory.NewSaleRepository(),
		products: memory.NewProductRepository(),
		stock:    stock.NewMockService(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
	}
	f.products.Put(domain.Product{
		ID:        "product-1",
		Name:      "Coffee Beans",
		UnitPrice: decimal.RequireFromString("10.00"),
	})
	f.products.Put(domain.Product{
		ID:        "product-2",
		Name:      "Green Tea",
		UnitPrice: decimal.RequireFromString("5.00"),
	})

	f.manager = NewManagerWithoutMetrics(
		f.sales, f.products, f.stock, f.outbox, f.timeline,
		log.New().WithField("test", t.Name()),
	)
	return f
}

func newSaleRequest(items ...domain.SaleItem) *domain.Sale {
	return domain.NewSale("sale-1", "branch-1", "customer-1", items)
}

func item(productID string, qty int32) domain.SaleItem {
	return domain.SaleItem{
		ID:        "item-" + productID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateSale_SuccessWithDiscount(t *testing.T) {
	f := newFixture(t)

	persisted, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 10)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if persisted.Status != domain.SaleStatusApproved {
		t.Fatalf("expected approved, got %s", persisted.Status)
	}
	if persisted.Number != 1 {
		t.Fatalf("expected number 1, got %d", persisted.Number)
	}
	// 10 * 10.00 со скидкой 20% = 80.00
	if got := persisted.TotalAmount(); got.String() != "80" {
		t.Fatalf("total = %s, want 80", got)
	}
	// Цену назначает сервер из справочника, а не клиент.
	if got := persisted.Items[0].Price; got.String() != "10" {
		t.Fatalf("item price = %s, want 10", got)
	}

	events := f.outbox.AllPending()
	if len(events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(events))
	}
	if events[0].EventType != "SaleCreated" {
		t.Fatalf("expected SaleCreated, got %s", events[0].EventType)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["sale_id"] != persisted.ID {
		t.Fatalf("payload sale_id = %v, want %s", payload["sale_id"], persisted.ID)
	}
	if payload["total_amount"] != "80" {
		t.Fatalf("payload total = %v, want 80", payload["total_amount"])
	}
}

func TestCreateSale_NumbersAreSequential(t *testing.T) {
	f := newFixture(t)

	first, err := f.manager.CreateSale(context.Background(),
		domain.NewSale("sale-1", "branch-1", "customer-1", []domain.SaleItem{item("product-1", 1)}))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.manager.CreateSale(context.Background(),
		domain.NewSale("sale-2", "branch-1", "customer-1", []domain.SaleItem{item("product-2", 1)}))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if first.Number != 1 || second.Number != 2 {
		t.Fatalf("expected numbers 1 and 2, got %d and %d", first.Number, second.Number)
	}
}

func TestCreateSale_UnavailableItemIsCanceled(t *testing.T) {
	f := newFixture(t)
	f.stock.MarkUnavailable("product-2")

	persisted, err := f.manager.CreateSale(context.Background(),
		newSaleRequest(item("product-1", 2), item("product-2", 3)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if persisted.Status != domain.SaleStatusApproved {
		t.Fatalf("expected approved (one item survived), got %s", persisted.Status)
	}
	if !persisted.Items[1].Canceled {
		t.Fatal("expected unavailable item to be canceled")
	}
	// 2 * 10.00 без скидки; отменённая позиция даёт ноль.
	if got := persisted.TotalAmount(); got.String() != "20" {
		t.Fatalf("total = %s, want 20", got)
	}

	events, err := f.timeline.List(context.Background(), persisted.ID)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	foundCancellation := false
	for _, event := range events {
		if event.Type == "SaleItemCanceled" {
			foundCancellation = true
		}
	}
	if !foundCancellation {
		t.Fatalf("expected SaleItemCanceled in timeline, got %v", events)
	}
}

func TestCreateSale_AllItemsUnavailableStaysPending(t *testing.T) {
	f := newFixture(t)
	f.stock.Available = false

	persisted, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 5)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if persisted.Status != domain.SaleStatusPending {
		t.Fatalf("expected pending, got %s", persisted.Status)
	}
	if got := persisted.TotalAmount(); !got.IsZero() {
		t.Fatalf("expected zero total, got %s", got)
	}
}

func TestCreateSale_UnknownProductIsCanceled(t *testing.T) {
	f := newFixture(t)

	persisted, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("no-such-product", 1)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if !persisted.Items[0].Canceled {
		t.Fatal("expected unknown product item to be canceled")
	}
	if persisted.Status != domain.SaleStatusPending {
		t.Fatalf("expected pending, got %s", persisted.Status)
	}
}

func TestCreateSale_StockErrorCancelsItemOnly(t *testing.T) {
	f := newFixture(t)
	f.stock.CheckErr = errors.New("stock service is down")

	persisted, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 2)))
	if err != nil {
		t.Fatalf("create sale should not fail on stock error: %v", err)
	}
	if !persisted.Items[0].Canceled {
		t.Fatal("expected item to be canceled when stock errs")
	}
}

func TestCreateSale_ValidationFailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 25)))
	if err == nil {
		t.Fatal("expected validation error")
	}

	verr, ok := domain.IsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "Items[0].Quantity" {
		t.Fatalf("unexpected fields: %v", verr.Fields)
	}

	// Ни склада, ни записи, ни событий.
	if f.stock.CheckCalls != 0 {
		t.Fatalf("expected no stock calls, got %d", f.stock.CheckCalls)
	}
	if _, err := f.sales.Get(context.Background(), "sale-1"); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected sale to be absent, got %v", err)
	}
	if events := f.outbox.AllPending(); len(events) != 0 {
		t.Fatalf("expected no outbox events, got %d", len(events))
	}
}

func TestCreateSale_CollectsAllValidationErrors(t *testing.T) {
	f := newFixture(t)

	sale := domain.NewSale("sale-1", "", "", []domain.SaleItem{item("product-1", 0)})
	_, err := f.manager.CreateSale(context.Background(), sale)

	verr, ok := domain.IsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 violations, got %v", verr.Fields)
	}
}

func TestCreateSale_CanceledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.manager.CreateSale(ctx, newSaleRequest(item("product-1", 1))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestUpdateSale_NotFound(t *testing.T) {
	f := newFixture(t)

	sale := newSaleRequest(item("product-1", 1))
	sale.ID = "missing"
	if _, err := f.manager.UpdateSale(context.Background(), sale); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
}

func TestUpdateSale_CanceledSaleIsTerminal(t *testing.T) {
	f := newFixture(t)

	created, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 1)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	cancelReq := domain.NewSale(created.ID, created.BranchID, created.CustomerID, []domain.SaleItem{item("product-1", 1)})
	cancelReq.Update(cancelReq.Items, true)
	if _, err := f.manager.UpdateSale(context.Background(), cancelReq); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}

	again := domain.NewSale(created.ID, created.BranchID, created.CustomerID, []domain.SaleItem{item("product-1", 2)})
	if _, err := f.manager.UpdateSale(context.Background(), again); !errors.Is(err, domain.ErrSaleCanceled) {
		t.Fatalf("expected ErrSaleCanceled, got %v", err)
	}
}

func TestUpdateSale_RecalculatesItemsAndStatus(t *testing.T) {
	f := newFixture(t)

	created, err := f.manager.CreateSale(context.Background(), newSaleRequest(item("product-1", 2)))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	update := domain.NewSale(created.ID, created.BranchID, created.CustomerID, nil)
	update.Update([]domain.SaleItem{item("product-2", 4)}, false)

	persisted, err := f.manager.UpdateSale(context.Background(), update)
	if err != nil {
		t.Fatalf("update sale: %v", err)
	}

	if persisted.Status != domain.SaleStatusApproved {
		t.Fatalf("expected approved, got %s", persisted.Status)
	}
	if persisted.Number != created.Number {
		t.Fatalf("number changed on update: %d -> %d", created.Number, persisted.Number)
	}
	// 4 * 5.00 со скидкой 10% = 18.00
	if got := persisted.TotalAmount(); got.String() != "18" {
		t.Fatalf("total = %s, want 18", got)
	}

	foundUpdate := false
	for _, event := range f.outbox.AllPending() {
		if event.EventType == "SaleUpdated" {
			foundUpdate = true
		}
	}
	if !foundUpdate {
		t.Fatal("expected SaleUpdated event in outbox")
	}
}
