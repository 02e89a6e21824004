package repository

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
)

// CachedStore serves catalog listings and user profiles from Redis and
// drops the affected keys on every write that could change them. Cache
// failures are logged and fall through to the underlying Store.
type CachedStore struct {
	Store
	cache      *RedisRepository
	productTTL time.Duration
	userTTL    time.Duration
	logger     *zap.Logger
}

func NewCachedStore(store Store, cache *RedisRepository, productTTL, userTTL time.Duration, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		Store:      store,
		cache:      cache,
		productTTL: productTTL,
		userTTL:    userTTL,
		logger:     logger,
	}
}

func (c *CachedStore) GetProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	return c.cachedList(ctx, ProductListKey(f), func() ([]models.Product, error) {
		return c.Store.GetProducts(ctx, f)
	})
}

func (c *CachedStore) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return c.cachedList(ctx, featuredKey, func() ([]models.Product, error) {
		return c.Store.GetFeaturedProducts(ctx)
	})
}

func (c *CachedStore) cachedList(ctx context.Context, key string, load func() ([]models.Product, error)) ([]models.Product, error) {
	products, ok, err := c.cache.GetCachedProducts(ctx, key)
	if err != nil {
		c.logger.Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		return products, nil
	}

	gen, genErr := c.cache.ProductGeneration(ctx)
	products, err = load()
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return products, nil
	}
	stored, err := c.cache.CacheProductsAt(ctx, key, products, c.productTTL, gen)
	if err != nil {
		c.logger.Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
	} else if !stored {
		c.logger.Debug("Skipped caching listing invalidated during load", zap.String("key", key))
	}
	return products, nil
}

func (c *CachedStore) invalidateProducts(ctx context.Context) {
	if err := c.cache.InvalidateProducts(ctx); err != nil {
		c.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func (c *CachedStore) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	out, err := c.Store.CreateProduct(ctx, p)
	if err == nil {
		c.invalidateProducts(ctx)
	}
	return out, err
}

func (c *CachedStore) UpdateProduct(ctx context.Context, id string, u ProductUpdate) (*models.Product, error) {
	out, err := c.Store.UpdateProduct(ctx, id, u)
	if err == nil {
		c.invalidateProducts(ctx)
	}
	return out, err
}

func (c *CachedStore) DeleteProduct(ctx context.Context, id string) (bool, error) {
	ok, err := c.Store.DeleteProduct(ctx, id)
	if ok {
		c.invalidateProducts(ctx)
	}
	return ok, err
}

// CreateReview changes the product's rating, which reorders listings.
func (c *CachedStore) CreateReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	out, err := c.Store.CreateReview(ctx, r)
	if err == nil {
		c.invalidateProducts(ctx)
	}
	return out, err
}

func (c *CachedStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, ok, err := c.cache.GetUserCache(ctx, id)
	if err != nil {
		c.logger.Warn("User cache read failed", zap.String("user_id", id), zap.Error(err))
	}
	if ok {
		return user, nil
	}

	user, err = c.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.CacheUser(ctx, user, c.userTTL); err != nil {
		c.logger.Warn("User cache write failed", zap.String("user_id", id), zap.Error(err))
	}
	return user, nil
}

func (c *CachedStore) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	out, err := c.Store.UpsertUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := c.cache.InvalidateUser(ctx, out.ID); err != nil {
		c.logger.Warn("Failed to invalidate user cache", zap.String("user_id", out.ID), zap.Error(err))
	}
	return out, nil
}
