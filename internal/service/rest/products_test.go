package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
)

func newProductsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewProductsHandler(memory.NewProductRepository(),
		log.New().WithField("test", t.Name()))

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func doProducts(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUpsertProduct_RoundTrip(t *testing.T) {
	router := newProductsRouter(t)

	body := map[string]any{"name": "Coffee Beans 1kg", "unit_price": "18.50"}
	rec := doProducts(t, router, http.MethodPut, "/api/v1/products/coffee-beans-1kg", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp productResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "coffee-beans-1kg", resp.ID)
	assert.Equal(t, "18.50", resp.UnitPrice)

	rec = doProducts(t, router, http.MethodGet, "/api/v1/products/coffee-beans-1kg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Coffee Beans 1kg", resp.Name)
}

func TestUpsertProduct_UpdatesPrice(t *testing.T) {
	router := newProductsRouter(t)

	first := doProducts(t, router, http.MethodPut, "/api/v1/products/moka-pot",
		map[string]any{"name": "Moka Pot", "unit_price": "32.00"})
	require.Equal(t, http.StatusOK, first.Code)

	second := doProducts(t, router, http.MethodPut, "/api/v1/products/moka-pot",
		map[string]any{"name": "Moka Pot", "unit_price": "29.90"})
	require.Equal(t, http.StatusOK, second.Code)

	var resp productResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "29.90", resp.UnitPrice)
}

func TestUpsertProduct_InvalidPrice(t *testing.T) {
	router := newProductsRouter(t)

	for _, price := range []string{"not-a-number", "-5.00"} {
		rec := doProducts(t, router, http.MethodPut, "/api/v1/products/p-1",
			map[string]any{"name": "Broken", "unit_price": price})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "price %q", price)
	}
}

func TestUpsertProduct_MissingName(t *testing.T) {
	router := newProductsRouter(t)

	rec := doProducts(t, router, http.MethodPut, "/api/v1/products/p-1",
		map[string]any{"unit_price": "1.00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newProductsRouter(t)

	rec := doProducts(t, router, http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
