package db

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// CachedProductRepository puts a Redis cache-aside layer in front of ProductRepository.
// Products are cached by id and by name; the name key is what duplicate detection reads first.
type CachedProductRepository struct {
	repo   *ProductRepository
	cache  *cache.RedisCache
	logger *zap.Logger
}

func NewCachedProductRepository(repo *ProductRepository, cache *cache.RedisCache, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Cache key helpers
func ProductKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func ProductNameKey(name string) string {
	return "product:name:" + name
}

// GetByID returns a single product (with caching)
func (r *CachedProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.readThrough(ctx, ProductKey(id), func() (*models.Product, error) {
		return r.repo.GetByID(ctx, id)
	})
}

// GetByName returns the product with that name (with caching)
func (r *CachedProductRepository) GetByName(ctx context.Context, name string) (*models.Product, error) {
	return r.readThrough(ctx, ProductNameKey(name), func() (*models.Product, error) {
		return r.repo.GetByName(ctx, name)
	})
}

// Create inserts a new product and primes both cache keys
func (r *CachedProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.repo.Create(ctx, p); err != nil {
		return err
	}
	r.prime(ctx, p)
	return nil
}

// Update writes through to the database and refreshes the cache
func (r *CachedProductRepository) Update(ctx context.Context, p *models.Product, previousName string) error {
	if err := r.repo.Update(ctx, p); err != nil {
		return err
	}
	if previousName != "" && previousName != p.Name {
		r.invalidate(ctx, ProductNameKey(previousName))
	}
	r.prime(ctx, p)
	return nil
}

// Delete removes a product and invalidates cache
func (r *CachedProductRepository) Delete(ctx context.Context, p *models.Product) error {
	if err := r.repo.Delete(ctx, p.ID); err != nil {
		return err
	}
	r.invalidate(ctx, ProductKey(p.ID), ProductNameKey(p.Name))
	return nil
}

func (r *CachedProductRepository) readThrough(ctx context.Context, key string, load func() (*models.Product, error)) (*models.Product, error) {
	var product models.Product
	err := r.cache.Get(ctx, key, &product)
	if err == nil {
		r.logger.Debug("📦 Cache HIT", zap.String("key", key))
		return &product, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("⚠️ Cache error", zap.String("key", key), zap.Error(err))
	}

	r.logger.Debug("💾 Cache MISS", zap.String("key", key))
	p, err := load()
	if err != nil || p == nil {
		return p, err
	}

	if err := r.cache.Set(ctx, key, p); err != nil {
		r.logger.Warn("⚠️ Failed to cache product", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

func (r *CachedProductRepository) prime(ctx context.Context, p *models.Product) {
	for _, key := range []string{ProductKey(p.ID), ProductNameKey(p.Name)} {
		if err := r.cache.Set(ctx, key, p); err != nil {
			r.logger.Warn("⚠️ Failed to cache product", zap.String("key", key), zap.Error(err))
		}
	}
}

func (r *CachedProductRepository) invalidate(ctx context.Context, keys ...string) {
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("⚠️ Failed to invalidate cache", zap.Strings("keys", keys), zap.Error(err))
		return
	}
	r.logger.Debug("🗑️ Cache invalidated", zap.Strings("keys", keys))
}
