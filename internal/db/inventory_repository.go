package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// InventoryRepository is the SQL store behind inventory.Ledger.
// Queries use ? placeholders and are rebound for the connected driver.
type InventoryRepository struct {
	db *sqlx.DB
}

func NewInventoryRepository(database *PostgresDB) *InventoryRepository {
	return &InventoryRepository{db: database.Conn}
}

// Get returns the row for productID, or nil when the product has no inventory yet.
func (r *InventoryRepository) Get(ctx context.Context, productID int64) (*models.InventoryItem, error) {
	query := r.db.Rebind(`
		SELECT product_id, available_quantity, reserved_quantity, total_quantity, version, created_at, updated_at
		FROM inventory_items WHERE product_id = ?`)

	var item models.InventoryItem
	if err := r.db.GetContext(ctx, &item, query, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	return &item, nil
}

// Insert creates the row and its INITIAL_STOCK transaction. It returns false if the row already exists.
func (r *InventoryRepository) Insert(ctx context.Context, item models.InventoryItem, txn models.InventoryTransaction) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO inventory_items
			(product_id, available_quantity, reserved_quantity, total_quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (product_id) DO NOTHING`),
		item.ProductID, item.AvailableQuantity, item.ReservedQuantity, item.TotalQuantity,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert inventory item: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return false, nil
	}

	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// UpdateVersioned writes the new counters only if the stored version still equals expectedVersion.
// It returns false, with nothing written, when another writer got there first.
func (r *InventoryRepository) UpdateVersioned(ctx context.Context, item models.InventoryItem, expectedVersion int64, txn models.InventoryTransaction) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, r.db.Rebind(`
		UPDATE inventory_items
		SET available_quantity = ?, reserved_quantity = ?, total_quantity = ?, version = ?, updated_at = ?
		WHERE product_id = ? AND version = ?`),
		item.AvailableQuantity, item.ReservedQuantity, item.TotalQuantity, item.Version, item.UpdatedAt,
		item.ProductID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update inventory item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := r.insertTransaction(ctx, tx, txn); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ListTransactions returns the audit trail of a product, oldest first.
func (r *InventoryRepository) ListTransactions(ctx context.Context, productID int64) ([]models.InventoryTransaction, error) {
	query := r.db.Rebind(`
		SELECT id, product_id, quantity, type, reference_id, created_at
		FROM inventory_transactions WHERE product_id = ? ORDER BY id`)

	var txns []models.InventoryTransaction
	if err := r.db.SelectContext(ctx, &txns, query, productID); err != nil {
		return nil, fmt.Errorf("failed to query inventory transactions: %w", err)
	}
	return txns, nil
}

func (r *InventoryRepository) insertTransaction(ctx context.Context, tx *sqlx.Tx, txn models.InventoryTransaction) error {
	_, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO inventory_transactions (product_id, quantity, type, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		txn.ProductID, txn.Quantity, txn.Type, txn.ReferenceID, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inventory transaction: %w", err)
	}
	return nil
}
