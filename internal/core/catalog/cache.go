package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	productKeyPrefix     = "catalog:product:"
	productListKeyPrefix = "catalog:products:"
	cacheTTL             = 5 * time.Minute
)

// Cache is a Redis read-through cache for catalog reads. Misses and Redis
// failures both fall through to the database; the cache never makes a read
// fail.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.With("component", "catalog-cache"),
	}
}

func listKey(categoryID *uuid.UUID) string {
	if categoryID == nil {
		return productListKeyPrefix + "all"
	}
	return productListKeyPrefix + categoryID.String()
}

func (c *Cache) GetProductList(ctx context.Context, categoryID *uuid.UUID) ([]*Product, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, listKey(categoryID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Product list cache read failed", "error", err.Error())
		}
		return nil, false
	}

	var products []*Product
	if err := json.Unmarshal(data, &products); err != nil {
		c.logger.Warn("Product list cache entry corrupt", "error", err.Error())
		return nil, false
	}

	return products, true
}

func (c *Cache) SetProductList(ctx context.Context, categoryID *uuid.UUID, products []*Product) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(products)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, listKey(categoryID), data, cacheTTL).Err(); err != nil {
		c.logger.Warn("Product list cache write failed", "error", err.Error())
	}
}

func (c *Cache) GetProduct(ctx context.Context, id uuid.UUID) (*Product, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, productKeyPrefix+id.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Product cache read failed", "error", err.Error())
		}
		return nil, false
	}

	var product Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, false
	}

	return &product, true
}

func (c *Cache) SetProduct(ctx context.Context, product *Product) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, productKeyPrefix+product.ID.String(), data, cacheTTL).Err(); err != nil {
		c.logger.Warn("Product cache write failed", "error", err.Error())
	}
}

func (c *Cache) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	if c.client == nil {
		return
	}

	if err := c.client.Del(ctx, productKeyPrefix+id.String()).Err(); err != nil {
		c.logger.Warn("Product cache invalidation failed", "error", err.Error())
	}
}

func (c *Cache) InvalidateProductLists(ctx context.Context) {
	if c.client == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, productListKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("Product list cache invalidation failed", "error", err.Error())
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Product list cache scan failed", "error", err.Error())
	}
}
