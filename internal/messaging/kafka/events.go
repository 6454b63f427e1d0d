package kafka

// Topics сервиса продаж.
const (
	// TopicSaleEvents — основной topic доменных событий продаж.
	TopicSaleEvents = "sales.sale.events"
	// TopicDeadLetterQueue — DLQ для сообщений, не доставленных после retry.
	TopicDeadLetterQueue = "sales.dlq"
)

// Типы событий, публикуемых из transactional outbox.
const (
	EventTypeSaleCreated      = "SaleCreated"
	EventTypeSaleUpdated      = "SaleUpdated"
	EventTypeSaleItemCanceled = "SaleItemCanceled"
)
