package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	defaultCacheTTL    = 5 * time.Minute
	defaultPingTimeout = 5 * time.Second
)

// NewClient создаёт redis-клиент и проверяет соединение.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ProductCache — read-through кэш поверх ProductRepository.
// Ошибки redis деградируют до похода в нижележащий репозиторий,
// кэш никогда не превращает доступный товар в недоступный.
type ProductCache struct {
	client *redis.Client
	inner  domain.ProductRepository
	ttl    time.Duration
	logger *log.Entry
}

// ProductCacheOption настраивает ProductCache.
type ProductCacheOption func(*ProductCache)

// WithTTL задаёт время жизни записи в кэше.
func WithTTL(ttl time.Duration) ProductCacheOption {
	return func(c *ProductCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger задаёт logger кэша.
func WithLogger(logger *log.Entry) ProductCacheOption {
	return func(c *ProductCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewProductCache оборачивает репозиторий товаров read-through кэшем.
func NewProductCache(client *redis.Client, inner domain.ProductRepository, options ...ProductCacheOption) *ProductCache {
	cache := &ProductCache{
		client: client,
		inner:  inner,
		ttl:    defaultCacheTTL,
		logger: log.WithField("component", "product-cache"),
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// cachedProduct — сериализуемое представление товара в redis.
type cachedProduct struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func productCacheKey(id string) string {
	return "product:" + id
}

// Get возвращает товар из кэша, а при промахе или сбое redis —
// из нижележащего репозитория с последующим наполнением кэша.
func (c *ProductCache) Get(ctx context.Context, id string) (domain.Product, error) {
	data, err := c.client.Get(ctx, productCacheKey(id)).Bytes()
	switch {
	case err == nil:
		product, decodeErr := decodeCachedProduct(data)
		if decodeErr == nil {
			return product, nil
		}
		c.logger.WithError(decodeErr).WithField("product_id", id).Warn("corrupt cache entry, falling back")
	case errors.Is(err, redis.Nil):
		// cache miss
	default:
		c.logger.WithError(err).WithField("product_id", id).Warn("redis get failed, falling back")
	}

	product, err := c.inner.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	c.store(ctx, product)
	return product, nil
}

// Upsert записывает товар в нижележащий репозиторий и сбрасывает кэш,
// чтобы следующее чтение увидело свежую цену.
func (c *ProductCache) Upsert(ctx context.Context, product domain.Product) error {
	if err := c.inner.Upsert(ctx, product); err != nil {
		return err
	}
	c.Invalidate(ctx, product.ID)
	return nil
}

// Invalidate удаляет товар из кэша.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, productCacheKey(id)).Err(); err != nil {
		c.logger.WithError(err).WithField("product_id", id).Warn("redis del failed")
	}
}

func (c *ProductCache) store(ctx context.Context, product domain.Product) {
	payload, err := json.Marshal(cachedProduct{
		ID:        product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice.String(),
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	})
	if err != nil {
		c.logger.WithError(err).WithField("product_id", product.ID).Warn("marshal cached product failed")
		return
	}

	if err := c.client.Set(ctx, productCacheKey(product.ID), payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("product_id", product.ID).Warn("redis set failed")
	}
}

func decodeCachedProduct(data []byte) (domain.Product, error) {
	var cached cachedProduct
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal cached product: %w", err)
	}

	price, err := decimal.NewFromString(cached.UnitPrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse cached unit price: %w", err)
	}

	return domain.Product{
		ID:        cached.ID,
		Name:      cached.Name,
		UnitPrice: price,
		CreatedAt: cached.CreatedAt,
		UpdatedAt: cached.UpdatedAt,
	}, nil
}

var _ domain.ProductRepository = (*ProductCache)(nil)
