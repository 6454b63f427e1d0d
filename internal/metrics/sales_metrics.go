package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SalesMetrics содержит метрики операций над продажами.
type SalesMetrics struct {
	salesCreated       prometheus.Counter
	salesUpdated       prometheus.Counter
	salesApproved      prometheus.Counter
	salesUnfulfilled   prometheus.Counter
	validationFailures prometheus.Counter
	itemsCanceled      prometheus.Counter

	operationDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewSalesMetrics создаёт новый экземпляр метрик продаж.
func NewSalesMetrics() *SalesMetrics {
	return newSalesMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newSalesMetricsWithRegisterer(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SalesMetrics{
		salesCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_created_total",
			Help: "Total number of sales created",
		}),
		salesUpdated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_updated_total",
			Help: "Total number of sales updated",
		}),
		salesApproved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_approved_total",
			Help: "Total number of sales approved after stock resolution",
		}),
		salesUnfulfilled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_unfulfilled_total",
			Help: "Total number of sales left pending because no item could be fulfilled",
		}),
		validationFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_validation_failures_total",
			Help: "Total number of sales rejected by business validation",
		}),
		itemsCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_items_canceled_total",
			Help: "Total number of sale items canceled due to stock shortage",
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sales_operation_duration_seconds",
			Help:    "Duration of sale operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordSaleCreated увеличивает счётчик созданных продаж.
func (m *SalesMetrics) RecordSaleCreated() {
	m.salesCreated.Inc()
}

// RecordSaleUpdated увеличивает счётчик обновлённых продаж.
func (m *SalesMetrics) RecordSaleUpdated() {
	m.salesUpdated.Inc()
}

// RecordSaleApproved увеличивает счётчик утверждённых продаж.
func (m *SalesMetrics) RecordSaleApproved() {
	m.salesApproved.Inc()
}

// RecordSaleUnfulfilled увеличивает счётчик продаж без единой подтверждённой позиции.
func (m *SalesMetrics) RecordSaleUnfulfilled() {
	m.salesUnfulfilled.Inc()
}

// RecordValidationFailure увеличивает счётчик отклонённых валидацией продаж.
func (m *SalesMetrics) RecordValidationFailure() {
	m.validationFailures.Inc()
}

// RecordItemsCanceled учитывает позиции, отменённые из-за нехватки стока.
func (m *SalesMetrics) RecordItemsCanceled(count int) {
	m.itemsCanceled.Add(float64(count))
}

// RecordOperationDuration записывает время выполнения операции.
func (m *SalesMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *SalesMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *SalesMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
