package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// upsertProductRequest — тело PUT /api/v1/products/{product_id}.
// Цена передаётся строкой, чтобы не терять точность на float.
type upsertProductRequest struct {
	Name      string `json:"name" binding:"required"`
	UnitPrice string `json:"unit_price" binding:"required"`
}

// productResponse — карточка товара в ответе API.
type productResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductsHandler обслуживает справочник товаров.
type ProductsHandler struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewProductsHandler создаёт HTTP-обработчик справочника товаров.
func NewProductsHandler(products domain.ProductRepository, logger *log.Entry) *ProductsHandler {
	if logger == nil {
		logger = log.WithField("component", "products-http")
	}
	return &ProductsHandler{
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes регистрирует маршруты справочника товаров.
func (h *ProductsHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.PUT("/products/:product_id", h.UpsertProduct)
		api.GET("/products/:product_id", h.GetProduct)
	}
}

// UpsertProduct обрабатывает PUT /api/v1/products/{product_id}.
func (h *ProductsHandler) UpsertProduct(c *gin.Context) {
	productID := c.Param("product_id")
	if productID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}

	var req upsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  "invalid request body",
			Fields: bindingErrorFields(err),
		})
		return
	}

	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unit_price must be a non-negative decimal"})
		return
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:        productID,
		Name:      req.Name,
		UnitPrice: price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.products.Upsert(c.Request.Context(), product); err != nil {
		h.logger.WithError(err).WithField("product_id", productID).Error("product upsert failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	stored, err := h.products.Get(c.Request.Context(), productID)
	if err != nil {
		h.logger.WithError(err).WithField("product_id", productID).Error("product readback failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, toProductResponse(stored))
}

// GetProduct обрабатывает GET /api/v1/products/{product_id}.
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	productID := c.Param("product_id")
	if productID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "product_id is required"})
		return
	}

	product, err := h.products.Get(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "product not found"})
			return
		}
		h.logger.WithError(err).WithField("product_id", productID).Error("product lookup failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, toProductResponse(product))
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice.StringFixed(2),
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}
