package sales

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
)

const (
	// defaultResolveLimit ограничивает параллелизм обращений к складу.
	defaultResolveLimit = 8
	// maxNumberRetries — попытки пересоздать продажу при гонке за номер.
	maxNumberRetries = 3
)

// Manager описывает оркестратор продаж: единственное место, где бизнес-правила
// создания и обновления применяются целиком.
type Manager interface {
	CreateSale(ctx context.Context, sale *domain.Sale) (domain.Sale, error)
	UpdateSale(ctx context.Context, sale *domain.Sale) (domain.Sale, error)
}

// manager реализует последовательность: валидация → номер → склад/цены → статус → запись → событие.
type manager struct {
	sales    domain.SaleRepository
	products domain.ProductRepository
	stock    domain.StockService
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.SalesMetrics

	resolveLimit int
}

// NewManager создаёт рабочий экземпляр оркестратора.
func NewManager(
	sales domain.SaleRepository,
	products domain.ProductRepository,
	stock domain.StockService,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Manager {
	if logger == nil {
		logger = log.New().WithField("component", "sale-manager")
	}
	return &manager{
		sales:        sales,
		products:     products,
		stock:        stock,
		outbox:       outbox,
		timeline:     timeline,
		logger:       logger,
		metrics:      metrics.NewSalesMetrics(),
		resolveLimit: defaultResolveLimit,
	}
}

// NewManagerWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewManagerWithoutMetrics(
	sales domain.SaleRepository,
	products domain.ProductRepository,
	stock domain.StockService,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) Manager {
	if logger == nil {
		logger = log.New().WithField("component", "sale-manager")
	}
	return &manager{
		sales:        sales,
		products:     products,
		stock:        stock,
		outbox:       outbox,
		timeline:     timeline,
		logger:       logger,
		resolveLimit: defaultResolveLimit,
	}
}

// CreateSale проводит новую продажу через полный цикл. Недоступность товара
// на складе не валит операцию: такая позиция отменяется и даёт ноль в сумме.
func (m *manager) CreateSale(ctx context.Context, sale *domain.Sale) (domain.Sale, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("create", time.Since(start))
		}
	}()

	last, err := m.sales.LastNumber(ctx)
	if err != nil {
		m.logger.WithError(err).Error("failed to fetch last sale number")
		return domain.Sale{}, err
	}
	sale.GenerateNumber(last)

	// Валидация идёт до любых обращений к складу и до записи.
	if result := sale.Validate(); !result.IsValid() {
		if m.metrics != nil {
			m.metrics.RecordValidationFailure()
		}
		return domain.Sale{}, domain.NewValidationError(result)
	}

	canceled, err := m.resolveItems(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	m.decideStatus(sale, canceled)

	// Отмена всего вызова не должна оставить частичной записи.
	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	persisted, err := m.createWithNumberRetry(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordSaleCreated()
	}
	m.emitEvent(ctx, &persisted, "SaleCreated", m.salePayload(&persisted, canceled))
	m.recordItemCancellations(ctx, &persisted, canceled)

	return persisted, nil
}

// UpdateSale повторяет шаги склада и статуса для существующей продажи.
// Продажа ищется до бизнес-логики; отменённая продажа — терминальна.
func (m *manager) UpdateSale(ctx context.Context, sale *domain.Sale) (domain.Sale, error) {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.RecordOperationDuration("update", time.Since(start))
		}
	}()

	existing, err := m.sales.Get(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	if existing.Status == domain.SaleStatusCanceled {
		return domain.Sale{}, domain.ErrSaleCanceled
	}
	sale.Number = existing.Number
	sale.Version = existing.Version
	sale.CreatedAt = existing.CreatedAt

	if result := sale.Validate(); !result.IsValid() {
		if m.metrics != nil {
			m.metrics.RecordValidationFailure()
		}
		return domain.Sale{}, domain.NewValidationError(result)
	}

	canceled, err := m.resolveItems(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}
	m.decideStatus(sale, canceled)

	if err := ctx.Err(); err != nil {
		return domain.Sale{}, err
	}

	persisted, err := m.sales.Update(ctx, *sale)
	if err != nil {
		m.logger.WithError(err).WithField("sale_id", sale.ID).Error("failed to persist sale update")
		return domain.Sale{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordSaleUpdated()
	}
	m.emitEvent(ctx, &persisted, "SaleUpdated", m.salePayload(&persisted, canceled))
	m.recordItemCancellations(ctx, &persisted, canceled)

	return persisted, nil
}

// resolveItems проверяет склад и подтягивает серверные цены для каждой
// неотменённой позиции. Позиции независимы и обрабатываются параллельно;
// каждая горутина владеет ровно одной позицией. Возвращает позиции,
// отменённые на этом шаге.
func (m *manager) resolveItems(ctx context.Context, sale *domain.Sale) ([]domain.SaleItem, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.resolveLimit)

	wasActive := make([]bool, len(sale.Items))
	for idx := range sale.Items {
		if sale.Items[idx].Canceled {
			continue
		}
		wasActive[idx] = true

		item := &sale.Items[idx]
		g.Go(func() error {
			return m.resolveItem(gctx, sale.BranchID, item)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	canceled := make([]domain.SaleItem, 0)
	for idx := range sale.Items {
		if wasActive[idx] && sale.Items[idx].Canceled {
			canceled = append(canceled, sale.Items[idx])
		}
	}
	return canceled, nil
}

// resolveItem решает судьбу одной позиции: недоступный или неизвестный товар
// отменяет позицию, доступный — фиксирует цену из справочника.
// Ошибки контекста прерывают всю операцию, остальные трактуются как недоступность.
func (m *manager) resolveItem(ctx context.Context, branchID string, item *domain.SaleItem) error {
	product, err := m.products.Get(ctx, item.ProductID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			m.logger.WithError(err).WithField("product_id", item.ProductID).Warn("product lookup failed")
		}
		item.Cancel()
		return nil
	}

	available, err := m.stock.CheckAvailability(ctx, item.ProductID, item.Quantity, branchID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.WithError(err).WithField("product_id", item.ProductID).Warn("stock check failed")
		item.Cancel()
		return nil
	}
	if !available {
		item.Cancel()
		return nil
	}

	item.Price = product.UnitPrice
	return nil
}

// decideStatus утверждает продажу, если склад подтвердил хотя бы одну позицию.
// Если не подтвердил ни одной — продажа остаётся pending с нулевой суммой.
// Принудительно отменённую продажу (cancelAll) решение не трогает.
func (m *manager) decideStatus(sale *domain.Sale, canceled []domain.SaleItem) {
	if m.metrics != nil && len(canceled) > 0 {
		m.metrics.RecordItemsCanceled(len(canceled))
	}

	if sale.Status == domain.SaleStatusCanceled {
		return
	}
	if sale.ActiveItemCount() > 0 {
		sale.Approve()
		if m.metrics != nil {
			m.metrics.RecordSaleApproved()
		}
		return
	}

	m.logger.WithFields(log.Fields{
		"sale_id": sale.ID,
		"number":  sale.Number,
	}).Warn("no items could be fulfilled, sale stays pending")
	if m.metrics != nil {
		m.metrics.RecordSaleUnfulfilled()
	}
}

// createWithNumberRetry сохраняет продажу, перегенерируя номер при гонке
// за уникальный сквозной номер.
func (m *manager) createWithNumberRetry(ctx context.Context, sale *domain.Sale) (domain.Sale, error) {
	for attempt := 1; ; attempt++ {
		persisted, err := m.sales.Create(ctx, *sale)
		if err == nil {
			return persisted, nil
		}
		if !errors.Is(err, domain.ErrSaleNumberConflict) || attempt >= maxNumberRetries {
			m.logger.WithError(err).WithFields(log.Fields{
				"sale_id": sale.ID,
				"attempt": attempt,
			}).Error("failed to persist sale")
			return domain.Sale{}, err
		}

		last, lastErr := m.sales.LastNumber(ctx)
		if lastErr != nil {
			return domain.Sale{}, lastErr
		}
		m.logger.WithFields(log.Fields{
			"sale_id": sale.ID,
			"number":  sale.Number,
			"attempt": attempt,
		}).Warn("sale number already taken, regenerating")
		sale.GenerateNumber(last)
	}
}

func (m *manager) salePayload(sale *domain.Sale, canceled []domain.SaleItem) map[string]interface{} {
	canceledProducts := make([]string, 0, len(canceled))
	for _, item := range canceled {
		canceledProducts = append(canceledProducts, item.ProductID)
	}
	return map[string]interface{}{
		"number":            sale.Number,
		"customer_id":       sale.CustomerID,
		"branch_id":         sale.BranchID,
		"status":            string(sale.Status),
		"total_amount":      sale.TotalAmount().String(),
		"canceled_products": canceledProducts,
		"ts":                sale.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// emitEvent кладёт событие в outbox и дублирует его в timeline продажи.
// Доставкой владеет outbox worker; ошибки здесь логируются и не влияют
// на результат операции.
func (m *manager) emitEvent(ctx context.Context, sale *domain.Sale, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["sale_id"] = sale.ID

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "sale",
		AggregateID:   sale.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := m.outbox.Enqueue(ctx, msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Error("enqueue event failed")
	} else if m.metrics != nil {
		m.metrics.RecordOutboxEvent()
	}

	if m.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		SaleID:   sale.ID,
		Type:     eventType,
		Occurred: sale.UpdatedAt,
	}
	if err := m.timeline.Append(ctx, event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Warn("append timeline event failed")
	} else if m.metrics != nil {
		m.metrics.RecordTimelineEvent()
	}
}

// recordItemCancellations оставляет в timeline след по каждой позиции,
// отменённой из-за недоступности на складе.
func (m *manager) recordItemCancellations(ctx context.Context, sale *domain.Sale, canceled []domain.SaleItem) {
	if m.timeline == nil {
		return
	}
	for _, item := range canceled {
		event := domain.TimelineEvent{
			SaleID:   sale.ID,
			Type:     "SaleItemCanceled",
			Reason:   "stock unavailable for product " + item.ProductID,
			Occurred: sale.UpdatedAt,
		}
		if err := m.timeline.Append(ctx, event); err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"sale_id":    sale.ID,
				"product_id": item.ProductID,
			}).Warn("append item cancellation event failed")
		} else if m.metrics != nil {
			m.metrics.RecordTimelineEvent()
		}
	}
}

var _ Manager = (*manager)(nil)
