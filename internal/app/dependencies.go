package app

import (
	"context"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/sales/internal/service/stock"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
	"github.com/vladislavdragonenkov/sales/internal/storage/redis"
)

// Dependencies содержит все зависимости сервиса продаж.
// Внешние бэкенды опциональны: без PostgreSQL работает in-memory хранилище,
// без Kafka события копятся в outbox, без склада отвечает mock.
type Dependencies struct {
	SaleRepo        domain.SaleRepository
	ProductRepo     domain.ProductRepository
	StockSvc        domain.StockService
	OutboxRepo      domain.OutboxRepository
	TimelineRepo    domain.TimelineRepository
	IdempotencyRepo domain.IdempotencyRepository
	Logger          *log.Entry

	Store         *postgres.Store
	RedisClient   *goredis.Client
	KafkaProducer *kafka.Producer
}

// NewDependencies собирает зависимости согласно конфигурации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		deps.Store = store
		deps.SaleRepo = postgres.NewSaleRepository(store)
		deps.ProductRepo = postgres.NewProductRepository(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		deps.TimelineRepo = postgres.NewTimelineRepository(store)
		deps.IdempotencyRepo = postgres.NewIdempotencyRepository(store)
		logger.Info("postgres storage initialized")
	} else {
		deps.SaleRepo = memory.NewSaleRepository()
		deps.ProductRepo = seedDemoProducts(memory.NewProductRepository())
		deps.OutboxRepo = memory.NewOutboxRepository()
		deps.TimelineRepo = memory.NewTimelineRepository()
		deps.IdempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
	}

	if cfg.RedisAddr != "" {
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, продолжаем без кэша товаров")
		} else {
			deps.RedisClient = client
			deps.ProductRepo = redis.NewProductCache(client, deps.ProductRepo,
				redis.WithLogger(logger.WithField("component", "product-cache")))
			logger.WithField("addr", cfg.RedisAddr).Info("product cache initialized")
		}
	}

	if cfg.StockURL != "" {
		deps.StockSvc = stock.NewClient(cfg.StockURL, logger.WithField("component", "stock-client"))
		logger.WithField("url", cfg.StockURL).Info("stock service client initialized")
	} else {
		deps.StockSvc = stock.NewMockService()
		logger.Info("using mock stock service")
	}

	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.KafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
		}
	}

	return deps, nil
}

// Close освобождает внешние подключения в обратном порядке инициализации.
func (d *Dependencies) Close() {
	if d.KafkaProducer != nil {
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// seedDemoProducts наполняет in-memory справочник, чтобы сервис был
// пригоден для локальной разработки без базы.
func seedDemoProducts(repo *memory.ProductRepository) *memory.ProductRepository {
	demo := map[string]struct {
		name  string
		price string
	}{
		"coffee-beans-1kg": {"Coffee Beans 1kg", "18.50"},
		"green-tea-250g":   {"Green Tea 250g", "7.90"},
		"espresso-cup":     {"Espresso Cup", "4.25"},
		"moka-pot":         {"Moka Pot", "32.00"},
	}
	for id, p := range demo {
		price, err := decimal.NewFromString(p.price)
		if err != nil {
			continue
		}
		repo.Put(domain.Product{ID: id, Name: p.name, UnitPrice: price})
	}
	return repo
}
