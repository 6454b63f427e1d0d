package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func validSale() *domain.Sale {
	sale := domain.NewSale("sale-1", "branch-1", "customer-1", []domain.SaleItem{
		{ID: "item-1", ProductID: "product-1", Quantity: 5, Price: decimal.RequireFromString("10.00")},
	})
	sale.GenerateNumber(0)
	return sale
}

func TestValidate_Ok(t *testing.T) {
	sale := validSale()
	if result := sale.Validate(); !result.IsValid() {
		t.Fatalf("expected valid sale, got %v", result.Errors)
	}
}

func TestValidate_SingleRuleViolations(t *testing.T) {
	cases := []struct {
		name      string
		mut       func(s *domain.Sale)
		wantField string
	}{
		{
			name:      "no number",
			mut:       func(s *domain.Sale) { s.Number = 0 },
			wantField: "Number",
		},
		{
			name:      "no customer",
			mut:       func(s *domain.Sale) { s.CustomerID = "" },
			wantField: "CustomerID",
		},
		{
			name:      "no branch",
			mut:       func(s *domain.Sale) { s.BranchID = "" },
			wantField: "BranchID",
		},
		{
			name:      "no items",
			mut:       func(s *domain.Sale) { s.Items = nil },
			wantField: "Items",
		},
		{
			name:      "item without product",
			mut:       func(s *domain.Sale) { s.Items[0].ProductID = "" },
			wantField: "Items[0].ProductID",
		},
		{
			name:      "zero quantity",
			mut:       func(s *domain.Sale) { s.Items[0].Quantity = 0 },
			wantField: "Items[0].Quantity",
		},
		{
			name:      "quantity over limit",
			mut:       func(s *domain.Sale) { s.Items[0].Quantity = domain.MaxItemQuantity + 1 },
			wantField: "Items[0].Quantity",
		},
		{
			name:      "negative price",
			mut:       func(s *domain.Sale) { s.Items[0].Price = decimal.RequireFromString("-1") },
			wantField: "Items[0].Price",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sale := validSale()
			tc.mut(sale)

			result := sale.Validate()
			if result.IsValid() {
				t.Fatal("expected validation errors")
			}

			found := false
			for _, ferr := range result.Errors {
				if ferr.Field == tc.wantField {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error on field %s, got %v", tc.wantField, result.Errors)
			}
		})
	}
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	sale := validSale()
	sale.Number = 0
	sale.CustomerID = ""
	sale.Items[0].Quantity = 0

	result := sale.Validate()
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(result.Errors), result.Errors)
	}

	// Порядок детерминирован: поля продажи, затем позиции по индексу.
	wantOrder := []string{"Number", "CustomerID", "Items[0].Quantity"}
	for i, want := range wantOrder {
		if result.Errors[i].Field != want {
			t.Fatalf("error %d: expected field %s, got %s", i, want, result.Errors[i].Field)
		}
	}
}

func TestValidate_BoundaryQuantityIsValid(t *testing.T) {
	sale := validSale()
	sale.Items[0].Quantity = domain.MaxItemQuantity

	if result := sale.Validate(); !result.IsValid() {
		t.Fatalf("expected %d units to be valid, got %v", domain.MaxItemQuantity, result.Errors)
	}
}

func TestValidationError_MessageAndUnwrap(t *testing.T) {
	sale := validSale()
	sale.CustomerID = ""

	err := domain.NewValidationError(sale.Validate())
	if !strings.Contains(err.Error(), "CustomerID") {
		t.Fatalf("expected error message to mention field, got %q", err.Error())
	}

	var verr *domain.ValidationError
	if !errors.As(error(err), &verr) {
		t.Fatal("expected errors.As to extract ValidationError")
	}
	if got, ok := domain.IsValidation(error(err)); !ok || len(got.Fields) != 1 {
		t.Fatalf("IsValidation mismatch: ok=%t fields=%v", ok, got)
	}
}
