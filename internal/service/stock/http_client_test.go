package stock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newStockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestClient_CheckAvailability_Available(t *testing.T) {
	server := newStockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/stock/product-1/availability" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("quantity"); got != "5" {
			t.Errorf("quantity = %s, want 5", got)
		}
		if got := r.URL.Query().Get("branch_id"); got != "branch-1" {
			t.Errorf("branch_id = %s, want branch-1", got)
		}
		_ = json.NewEncoder(w).Encode(availabilityResponse{
			ProductID:    "product-1",
			BranchID:     "branch-1",
			RequestedQty: 5,
			Available:    true,
		})
	})

	client := NewClient(server.URL, nil)
	available, err := client.CheckAvailability(context.Background(), "product-1", 5, "branch-1")
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if !available {
		t.Fatal("expected available")
	}
}

func TestClient_CheckAvailability_NotAvailable(t *testing.T) {
	server := newStockServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(availabilityResponse{Available: false})
	})

	client := NewClient(server.URL, nil)
	available, err := client.CheckAvailability(context.Background(), "product-1", 5, "branch-1")
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if available {
		t.Fatal("expected not available")
	}
}

func TestClient_CheckAvailability_UnknownProductIsNotAvailable(t *testing.T) {
	server := newStockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	client := NewClient(server.URL, nil)
	available, err := client.CheckAvailability(context.Background(), "no-such-product", 1, "branch-1")
	if err != nil {
		t.Fatalf("404 must not be an error: %v", err)
	}
	if available {
		t.Fatal("expected not available for unknown product")
	}
}

func TestClient_CheckAvailability_ServerError(t *testing.T) {
	server := newStockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := NewClient(server.URL, nil)
	if _, err := client.CheckAvailability(context.Background(), "product-1", 1, "branch-1"); err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestClient_CheckAvailability_CanceledContext(t *testing.T) {
	server := newStockServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(availabilityResponse{Available: true})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, nil)
	if _, err := client.CheckAvailability(ctx, "product-1", 1, "branch-1"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
