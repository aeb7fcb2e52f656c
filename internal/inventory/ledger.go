package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

var (
	ErrItemNotFound            = apperror.NotFound("inventory item not found")
	ErrAlreadyExists           = apperror.Conflict("inventory item already exists")
	ErrConcurrentModification  = apperror.Conflict("inventory item was modified concurrently")
	ErrInsufficientStock       = apperror.New(apperror.CategoryInsufficientStock, "insufficient stock")
	ErrInsufficientReservation = apperror.New(apperror.CategoryInsufficientReservation, "insufficient reserved quantity")
)

// Store persists inventory rows. Insert and UpdateVersioned write the item and its
// audit transaction atomically and report false when nothing was written.
type Store interface {
	Get(ctx context.Context, productID int64) (*models.InventoryItem, error)
	Insert(ctx context.Context, item models.InventoryItem, txn models.InventoryTransaction) (bool, error)
	UpdateVersioned(ctx context.Context, item models.InventoryItem, expectedVersion int64, txn models.InventoryTransaction) (bool, error)
}

// Ledger owns the available/reserved/total counters of every product.
// Each mutation is a read followed by a write conditioned on the version it read;
// a lost race is reported as ErrConcurrentModification and never retried here.
type Ledger struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLedger(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns the current snapshot of a product's counters.
func (l *Ledger) Get(ctx context.Context, productID int64) (*models.InventoryItem, error) {
	item, err := l.store.Get(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory item %d: %w", productID, err)
	}
	if item == nil {
		return nil, fmt.Errorf("product %d: %w", productID, ErrItemNotFound)
	}
	return item, nil
}

// Initialize creates the row for a product. referenceID is usually the product id itself.
func (l *Ledger) Initialize(ctx context.Context, productID int64, initialQty int, referenceID string) (*models.InventoryItem, error) {
	if initialQty < 0 {
		return nil, apperror.Validation("initial quantity must not be negative")
	}

	now := l.now()
	item := models.InventoryItem{
		ProductID:         productID,
		AvailableQuantity: initialQty,
		TotalQuantity:     initialQty,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	txn := models.InventoryTransaction{
		ProductID:   productID,
		Quantity:    initialQty,
		Type:        models.TransactionInitialStock,
		ReferenceID: referenceID,
		CreatedAt:   now,
	}

	inserted, err := l.store.Insert(ctx, item, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inventory for product %d: %w", productID, err)
	}
	if !inserted {
		return nil, fmt.Errorf("product %d: %w", productID, ErrAlreadyExists)
	}

	l.logger.Info("✅ Inventory initialized",
		zap.Int64("product_id", productID),
		zap.Int("quantity", initialQty),
	)
	return &item, nil
}

// Reserve moves qty from available to reserved.
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int, referenceID string) (*models.InventoryItem, error) {
	return l.mutate(ctx, "reserve", productID, qty, referenceID, func(item *models.InventoryItem) (int, models.TransactionType, error) {
		if item.AvailableQuantity < qty {
			return 0, "", fmt.Errorf("product %d has %d available, %d requested: %w",
				productID, item.AvailableQuantity, qty, ErrInsufficientStock)
		}
		item.AvailableQuantity -= qty
		item.ReservedQuantity += qty
		return -qty, models.TransactionOut, nil
	})
}

// Release moves qty from reserved back to available.
func (l *Ledger) Release(ctx context.Context, productID int64, qty int, referenceID string) (*models.InventoryItem, error) {
	return l.mutate(ctx, "release", productID, qty, referenceID, func(item *models.InventoryItem) (int, models.TransactionType, error) {
		if item.ReservedQuantity < qty {
			return 0, "", fmt.Errorf("product %d has %d reserved, %d requested: %w",
				productID, item.ReservedQuantity, qty, ErrInsufficientReservation)
		}
		item.ReservedQuantity -= qty
		item.AvailableQuantity += qty
		return qty, models.TransactionIn, nil
	})
}

// Adjust restocks (isAddition) or shrinks available and total together.
func (l *Ledger) Adjust(ctx context.Context, productID int64, qty int, isAddition bool, referenceID string) (*models.InventoryItem, error) {
	return l.mutate(ctx, "adjust", productID, qty, referenceID, func(item *models.InventoryItem) (int, models.TransactionType, error) {
		if isAddition {
			item.AvailableQuantity += qty
			item.TotalQuantity += qty
			return qty, models.TransactionIn, nil
		}
		if item.AvailableQuantity < qty {
			return 0, "", fmt.Errorf("product %d has %d available, cannot remove %d: %w",
				productID, item.AvailableQuantity, qty, ErrInsufficientStock)
		}
		item.AvailableQuantity -= qty
		item.TotalQuantity -= qty
		return -qty, models.TransactionOut, nil
	})
}

// IsAvailable is a read-only pre-check; an unknown product is simply not available.
func (l *Ledger) IsAvailable(ctx context.Context, productID int64, qty int) (bool, error) {
	item, err := l.store.Get(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("failed to load inventory item %d: %w", productID, err)
	}
	if item == nil {
		return false, nil
	}
	return item.AvailableQuantity >= qty, nil
}

type applyFunc func(item *models.InventoryItem) (signedQty int, typ models.TransactionType, err error)

func (l *Ledger) mutate(ctx context.Context, op string, productID int64, qty int, referenceID string, apply applyFunc) (*models.InventoryItem, error) {
	if qty <= 0 {
		return nil, apperror.Validation(op + " quantity must be positive")
	}

	current, err := l.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	next := *current
	signed, typ, err := apply(&next)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = l.now()

	txn := models.InventoryTransaction{
		ProductID:   productID,
		Quantity:    signed,
		Type:        typ,
		ReferenceID: referenceID,
		CreatedAt:   next.UpdatedAt,
	}

	written, err := l.store.UpdateVersioned(ctx, next, current.Version, txn)
	if err != nil {
		return nil, fmt.Errorf("failed to %s product %d: %w", op, productID, err)
	}
	if !written {
		l.logger.Warn("⚠️ Version conflict on inventory item",
			zap.String("op", op),
			zap.Int64("product_id", productID),
			zap.Int64("expected_version", current.Version),
		)
		return nil, fmt.Errorf("%s product %d: %w", op, productID, ErrConcurrentModification)
	}

	l.logger.Debug("Inventory updated",
		zap.String("op", op),
		zap.Int64("product_id", productID),
		zap.Int("available", next.AvailableQuantity),
		zap.Int("reserved", next.ReservedQuantity),
		zap.Int("total", next.TotalQuantity),
		zap.Int64("version", next.Version),
	)
	return &next, nil
}
