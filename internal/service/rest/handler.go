package rest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// SalesHandler обслуживает HTTP API продаж.
type SalesHandler struct {
	manager  sales.Manager
	sales    domain.SaleRepository
	timeline domain.TimelineRepository
	idems    domain.IdempotencyRepository
	logger   *log.Entry
}

// NewSalesHandler создаёт HTTP-обработчик продаж. idems может быть nil:
// тогда заголовок Idempotency-Key игнорируется.
func NewSalesHandler(
	manager sales.Manager,
	saleRepo domain.SaleRepository,
	timeline domain.TimelineRepository,
	idems domain.IdempotencyRepository,
	logger *log.Entry,
) *SalesHandler {
	if logger == nil {
		logger = log.WithField("component", "sales-http")
	}
	return &SalesHandler{
		manager:  manager,
		sales:    saleRepo,
		timeline: timeline,
		idems:    idems,
		logger:   logger,
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *SalesHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.POST("/sales", h.CreateSale)
		api.PUT("/sales/:sale_id", h.UpdateSale)
		api.GET("/sales/:sale_id", h.GetSale)
		api.GET("/sales/:sale_id/timeline", h.GetSaleTimeline)
		api.GET("/sales", h.ListSales)
	}
}

// CreateSale обрабатывает POST /api/v1/sales.
// При наличии Idempotency-Key повторный запрос с тем же телом
// возвращает сохранённый ответ без повторного проведения продажи.
func (h *SalesHandler) CreateSale(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	idemKey := c.GetHeader(headerIdempotencyKey)
	if h.idems != nil && idemKey != "" {
		if done := h.beginIdempotent(c, idemKey, body); done {
			return
		}
	}

	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.finishIdempotent(c, idemKey, http.StatusBadRequest)
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  "invalid request body",
			Fields: bindingErrorFields(err),
		})
		return
	}

	sale := domain.NewSale(uuid.NewString(), req.BranchID, req.CustomerID, toDomainItems(req.Items))

	persisted, err := h.manager.CreateSale(c.Request.Context(), sale)
	if err != nil {
		status := h.writeError(c, err)
		h.finishIdempotent(c, idemKey, status)
		return
	}

	resp := toSaleResponse(persisted)
	c.JSON(http.StatusCreated, resp)
	h.storeIdempotentResponse(c, idemKey, http.StatusCreated, resp)
}

// UpdateSale обрабатывает PUT /api/v1/sales/{sale_id}.
func (h *SalesHandler) UpdateSale(c *gin.Context) {
	saleID := c.Param("sale_id")
	if saleID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "sale_id is required"})
		return
	}

	var req updateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  "invalid request body",
			Fields: bindingErrorFields(err),
		})
		return
	}

	sale := domain.Sale{
		ID:         saleID,
		BranchID:   req.BranchID,
		CustomerID: req.CustomerID,
		Status:     domain.SaleStatusPending,
	}
	sale.Update(toDomainItems(req.Items), req.Cancel)

	persisted, err := h.manager.UpdateSale(c.Request.Context(), &sale)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(persisted))
}

// GetSale обрабатывает GET /api/v1/sales/{sale_id}.
func (h *SalesHandler) GetSale(c *gin.Context) {
	saleID := c.Param("sale_id")
	if saleID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "sale_id is required"})
		return
	}

	sale, err := h.sales.Get(c.Request.Context(), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSaleResponse(sale))
}

// GetSaleTimeline обрабатывает GET /api/v1/sales/{sale_id}/timeline.
func (h *SalesHandler) GetSaleTimeline(c *gin.Context) {
	saleID := c.Param("sale_id")
	if saleID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "sale_id is required"})
		return
	}

	// Лента есть только у существующей продажи.
	if _, err := h.sales.Get(c.Request.Context(), saleID); err != nil {
		h.writeError(c, err)
		return
	}

	events, err := h.timeline.List(c.Request.Context(), saleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sale_id": saleID,
		"events":  toTimelineResponse(events),
	})
}

// ListSales обрабатывает GET /api/v1/sales?customer_id=&limit=.
func (h *SalesHandler) ListSales(c *gin.Context) {
	customerID := c.Query("customer_id")
	if customerID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "customer_id query parameter is required"})
		return
	}

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	list, err := h.sales.ListByCustomer(c.Request.Context(), customerID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	responses := make([]saleResponse, 0, len(list))
	for _, sale := range list {
		responses = append(responses, toSaleResponse(sale))
	}
	c.JSON(http.StatusOK, listSalesResponse{Sales: responses, TotalCount: len(responses)})
}

// beginIdempotent регистрирует запрос по Idempotency-Key.
// Возвращает true, если ответ уже отправлен (replay или конфликт).
func (h *SalesHandler) beginIdempotent(c *gin.Context, key string, body []byte) bool {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	record, err := h.idems.CreateProcessing(c.Request.Context(), key, requestHash, time.Now().UTC().Add(idempotencyTTL))
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error: "idempotency key was used with a different request body",
		})
		return true
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			c.JSON(http.StatusConflict, errorResponse{Error: "request with this idempotency key is in flight"})
			return true
		}
		c.Data(record.HTTPStatus, "application/json", record.ResponseBody)
		return true
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "idempotency key must not be blank"})
		return true
	default:
		h.logger.WithError(err).Warn("idempotency bookkeeping failed, processing without it")
		return false
	}
}

// storeIdempotentResponse сохраняет успешный ответ для последующего replay.
func (h *SalesHandler) storeIdempotentResponse(c *gin.Context, key string, status int, resp saleResponse) {
	if h.idems == nil || key == "" {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		h.logger.WithError(err).Warn("marshal idempotent response failed")
		return
	}
	if err := h.idems.MarkDone(c.Request.Context(), key, payload, status); err != nil {
		h.logger.WithError(err).Warn("mark idempotency record done failed")
	}
}

// finishIdempotent фиксирует неуспешный исход, чтобы ключ не завис в processing.
func (h *SalesHandler) finishIdempotent(c *gin.Context, key string, status int) {
	if h.idems == nil || key == "" {
		return
	}
	if err := h.idems.MarkFailed(c.Request.Context(), key, nil, status); err != nil &&
		!errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		h.logger.WithError(err).Warn("mark idempotency record failed")
	}
}

// writeError переводит доменные ошибки в HTTP-ответы и возвращает статус.
func (h *SalesHandler) writeError(c *gin.Context, err error) int {
	if verr, ok := domain.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:  "sale validation failed",
			Fields: verr.Fields,
		})
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, domain.ErrSaleNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "sale not found"})
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSaleCanceled):
		c.JSON(http.StatusConflict, errorResponse{Error: "sale is canceled and cannot be modified"})
		return http.StatusConflict
	case errors.Is(err, domain.ErrSaleVersionConflict):
		c.JSON(http.StatusConflict, errorResponse{Error: "sale was modified concurrently, retry the request"})
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "product not found"})
		return http.StatusNotFound
	default:
		h.logger.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return http.StatusInternalServerError
	}
}
