package repository

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
)

const productKeyPrefix = "products:"

// productGenKey counts product invalidations. It lives outside
// productKeyPrefix so InvalidateProducts never deletes it.
const productGenKey = "catalog:gen"

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}))
}

func NewRedisRepositoryFromClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON decodes the value at key into dest. A miss reports (false, nil).
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// ProductListKey derives a stable key for one filter combination.
func ProductListKey(f ProductFilter) string {
	var min, max string
	if f.MinPrice != nil {
		min = f.MinPrice.String()
	}
	if f.MaxPrice != nil {
		max = f.MaxPrice.String()
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", f.Category, f.Search, min, max, f.Sort)))
	return productKeyPrefix + hex.EncodeToString(sum[:8])
}

const featuredKey = productKeyPrefix + "featured"

// ProductGeneration reads the invalidation counter; a listing loaded after
// this read may only be cached while the counter is unchanged.
func (r *RedisRepository) ProductGeneration(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, productGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// CacheProductsAt stores products only if no invalidation happened since gen
// was read. It reports whether the listing was stored.
func (r *RedisRepository) CacheProductsAt(ctx context.Context, key string, products []models.Product, ttl time.Duration, gen int64) (bool, error) {
	data, err := json.Marshal(products)
	if err != nil {
		return false, err
	}
	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, productGenKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, productGenKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (r *RedisRepository) GetCachedProducts(ctx context.Context, key string) ([]models.Product, bool, error) {
	var products []models.Product
	ok, err := r.GetJSON(ctx, key, &products)
	return products, ok, err
}

// InvalidateProducts drops every cached product listing.
func (r *RedisRepository) InvalidateProducts(ctx context.Context) error {
	if err := r.client.Incr(ctx, productGenKey).Err(); err != nil {
		return err
	}
	iter := r.client.Scan(ctx, 0, productKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func userKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}

func (r *RedisRepository) CacheUser(ctx context.Context, user *models.User, ttl time.Duration) error {
	return r.SetJSON(ctx, userKey(user.ID), user, ttl)
}

func (r *RedisRepository) GetUserCache(ctx context.Context, userID string) (*models.User, bool, error) {
	var user models.User
	ok, err := r.GetJSON(ctx, userKey(userID), &user)
	if !ok {
		return nil, false, err
	}
	return &user, true, nil
}

func (r *RedisRepository) InvalidateUser(ctx context.Context, userID string) error {
	return r.client.Del(ctx, userKey(userID)).Err()
}
