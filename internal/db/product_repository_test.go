package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

func newProduct(name string) *models.Product {
	now := time.Now().UTC()
	return &models.Product{
		Name:       name,
		Price:      19.99,
		Status:     models.ProductActive,
		Attributes: map[string]string{"color": "red"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestProductRepository_CRUD(t *testing.T) {
	repo := db.NewProductRepository(memdb(t))
	ctx := context.Background()

	p := newProduct("teapot")
	require.NoError(t, repo.Create(ctx, p))
	require.NotZero(t, p.ID)

	got, err := repo.GetByName(ctx, "teapot")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "red", got.Attributes["color"])

	p.Name = "kettle"
	p.Price = 25
	require.NoError(t, repo.Update(ctx, p))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "kettle", got.Name)
	assert.InDelta(t, 25.0, got.Price, 0.001)

	missing, err := repo.GetByName(ctx, "teapot")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Delete(ctx, p.ID))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProductRepository_MissingRowsAreNotFound(t *testing.T) {
	repo := db.NewProductRepository(memdb(t))
	ctx := context.Background()

	p := newProduct("ghost")
	p.ID = 404

	err := repo.Update(ctx, p)
	assert.ErrorIs(t, err, db.ErrProductNotFound)
	assert.Equal(t, apperror.CategoryNotFound, apperror.CategoryOf(err))
	assert.ErrorIs(t, repo.Delete(ctx, 404), db.ErrProductNotFound)
}

func newCachedRepo(t *testing.T) (*db.CachedProductRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return db.NewCachedProductRepository(
		db.NewProductRepository(memdb(t)),
		cache.NewRedisCache(client, time.Minute),
		zap.NewNop(),
	), mr
}

func TestCachedProductRepository_PrimesBothKeysOnCreate(t *testing.T) {
	repo, mr := newCachedRepo(t)
	ctx := context.Background()

	p := newProduct("mug")
	require.NoError(t, repo.Create(ctx, p))

	assert.True(t, mr.Exists(db.ProductKey(p.ID)))
	assert.True(t, mr.Exists(db.ProductNameKey("mug")))

	got, err := repo.GetByName(ctx, "mug")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestCachedProductRepository_RenameDropsOldNameKey(t *testing.T) {
	repo, mr := newCachedRepo(t)
	ctx := context.Background()

	p := newProduct("plate")
	require.NoError(t, repo.Create(ctx, p))

	p.Name = "bowl"
	require.NoError(t, repo.Update(ctx, p, "plate"))

	assert.False(t, mr.Exists(db.ProductNameKey("plate")))
	assert.True(t, mr.Exists(db.ProductNameKey("bowl")))

	old, err := repo.GetByName(ctx, "plate")
	require.NoError(t, err)
	assert.Nil(t, old)
	assert.False(t, mr.Exists(db.ProductNameKey("plate")), "misses are not cached")
}

func TestCachedProductRepository_DeleteInvalidates(t *testing.T) {
	repo, mr := newCachedRepo(t)
	ctx := context.Background()

	p := newProduct("spoon")
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.Delete(ctx, p))

	assert.False(t, mr.Exists(db.ProductKey(p.ID)))
	assert.False(t, mr.Exists(db.ProductNameKey("spoon")))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCachedProductRepository_ReadsFallBackWhenRedisIsDown(t *testing.T) {
	repo, mr := newCachedRepo(t)
	ctx := context.Background()

	p := newProduct("fork")
	require.NoError(t, repo.Create(ctx, p))
	mr.SetError("LOADING Redis is loading the dataset in memory")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "fork", got.Name)
}
