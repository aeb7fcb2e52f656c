package inventory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// memStore is an in-memory Store with the same version check the SQL repository uses.
type memStore struct {
	mu    sync.Mutex
	items map[int64]models.InventoryItem
	txns  []models.InventoryTransaction

	// beforeUpdate runs between the ledger's read and its write, to simulate a racing writer.
	beforeUpdate func()
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]models.InventoryItem{}}
}

func (s *memStore) Get(_ context.Context, productID int64) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[productID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *memStore) Insert(_ context.Context, item models.InventoryItem, txn models.InventoryTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ProductID]; ok {
		return false, nil
	}
	s.items[item.ProductID] = item
	s.txns = append(s.txns, txn)
	return true, nil
}

func (s *memStore) UpdateVersioned(_ context.Context, item models.InventoryItem, expected int64, txn models.InventoryTransaction) (bool, error) {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items[item.ProductID].Version != expected {
		return false, nil
	}
	s.items[item.ProductID] = item
	s.txns = append(s.txns, txn)
	return true, nil
}

func newTestLedger(t *testing.T) (*Ledger, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewLedger(store, zap.NewNop()), store
}

func TestLedger_ExampleScenario(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Initialize(ctx, 42, 10, "42")
	require.NoError(t, err)

	item, err := ledger.Reserve(ctx, 42, 7, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 3, item.AvailableQuantity)
	assert.Equal(t, 7, item.ReservedQuantity)
	assert.Equal(t, 10, item.TotalQuantity)

	_, err = ledger.Reserve(ctx, 42, 5, "order-2")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrConcurrentModification)

	item, err = ledger.Release(ctx, 42, 7, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQuantity)
	assert.Equal(t, 0, item.ReservedQuantity)
	assert.Equal(t, 10, item.TotalQuantity)
}

func TestLedger_InitializeTwiceFails(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Initialize(ctx, 7, 0, "7")
	require.NoError(t, err)

	_, err = ledger.Initialize(ctx, 7, 5, "7")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.Len(t, store.txns, 1)
	assert.Equal(t, models.TransactionInitialStock, store.txns[0].Type)
	assert.Equal(t, "7", store.txns[0].ReferenceID)
}

func TestLedger_ReleaseMoreThanReserved(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Initialize(ctx, 1, 5, "1")
	require.NoError(t, err)
	_, err = ledger.Reserve(ctx, 1, 2, "o")
	require.NoError(t, err)

	_, err = ledger.Release(ctx, 1, 3, "o")
	assert.ErrorIs(t, err, ErrInsufficientReservation)
	assert.Equal(t, apperror.CategoryInsufficientReservation, apperror.CategoryOf(err))
}

func TestLedger_AdjustMovesAvailableAndTotal(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Initialize(ctx, 3, 4, "3")
	require.NoError(t, err)

	item, err := ledger.Adjust(ctx, 3, 6, true, "restock")
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQuantity)
	assert.Equal(t, 10, item.TotalQuantity)

	_, err = ledger.Adjust(ctx, 3, 11, false, "shrinkage")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	item, err = ledger.Adjust(ctx, 3, 10, false, "shrinkage")
	require.NoError(t, err)
	assert.Equal(t, 0, item.TotalQuantity)

	last := store.txns[len(store.txns)-1]
	assert.Equal(t, -10, last.Quantity)
	assert.Equal(t, models.TransactionOut, last.Type)
}

func TestLedger_RejectsNonPositiveQuantity(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Initialize(ctx, 1, 5, "1")
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 1, 0, "o")
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
}

func TestLedger_UnknownProduct(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.Reserve(ctx, 99, 1, "o")
	assert.ErrorIs(t, err, ErrItemNotFound)

	ok, err := ledger.IsAvailable(ctx, 99, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_IsAvailable(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Initialize(ctx, 5, 3, "5")
	require.NoError(t, err)

	ok, err := ledger.IsAvailable(ctx, 5, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.IsAvailable(ctx, 5, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_VersionConflictIsSurfaced(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Initialize(ctx, 8, 10, "8")
	require.NoError(t, err)

	store.beforeUpdate = func() {
		store.mu.Lock()
		item := store.items[8]
		item.Version++
		store.items[8] = item
		store.mu.Unlock()
	}

	_, err = ledger.Reserve(ctx, 8, 1, "o")
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.NotErrorIs(t, err, ErrInsufficientStock)

	item, err := ledger.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 10, item.AvailableQuantity)
}

func TestLedger_ConservationUnderRandomOperations(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Initialize(ctx, 1, 50, "1")
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		qty := rng.Intn(8) + 1
		switch rng.Intn(4) {
		case 0:
			_, err = ledger.Reserve(ctx, 1, qty, "r")
		case 1:
			_, err = ledger.Release(ctx, 1, qty, "r")
		case 2:
			_, err = ledger.Adjust(ctx, 1, qty, true, "a")
		case 3:
			_, err = ledger.Adjust(ctx, 1, qty, false, "a")
		}
		if err != nil {
			require.True(t,
				errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrInsufficientReservation),
				"unexpected error: %v", err)
		}

		item, err := ledger.Get(ctx, 1)
		require.NoError(t, err)
		require.True(t, item.Balanced(), "unbalanced after step %d: %+v", i, item)
	}

	// Every successful mutation bumps the version and writes exactly one audit row.
	item, _ := ledger.Get(ctx, 1)
	assert.Equal(t, int64(len(store.txns)), item.Version)
}

func TestLedger_ConcurrentReservesOversubscribeByOne(t *testing.T) {
	const n = 20
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	_, err := ledger.Initialize(ctx, 42, n-1, "42")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := ledger.Reserve(ctx, 42, 1, "burst")
				if errors.Is(err, ErrConcurrentModification) {
					continue
				}
				if err != nil {
					assert.ErrorIs(t, err, ErrInsufficientStock)
					mu.Lock()
					failures++
					mu.Unlock()
				}
				return
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, failures)
	item, err := ledger.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, item.AvailableQuantity)
	assert.Equal(t, n-1, item.ReservedQuantity)
	assert.True(t, item.Balanced())
}
