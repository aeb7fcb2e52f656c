package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type SaleOrderRepository struct {
	db *sqlx.DB
}

func NewSaleOrderRepository(database *PostgresDB) *SaleOrderRepository {
	return &SaleOrderRepository{db: database.Conn}
}

// Create inserts a sale order with its items
func (r *SaleOrderRepository) Create(ctx context.Context, so *models.SaleOrder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sale_orders (id, customer_id, amount, currency, status, stock_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		so.ID, so.CustomerID, so.Amount, so.Currency, so.Status, so.StockReserved, so.CreatedAt, so.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale order: %w", err)
	}

	itemQuery := r.db.Rebind(`
		INSERT INTO sale_order_items (sale_order_id, product_id, quantity, price)
		VALUES (?, ?, ?, ?)`)
	for i := range so.Items {
		so.Items[i].SaleOrderID = so.ID
		_, err = tx.ExecContext(ctx, itemQuery,
			so.ID, so.Items[i].ProductID, so.Items[i].Quantity, so.Items[i].Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sale order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a sale order with items, or nil when it does not exist
func (r *SaleOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SaleOrder, error) {
	var so models.SaleOrder
	err := r.db.GetContext(ctx, &so, r.db.Rebind(`
		SELECT id, customer_id, amount, currency, status, stock_reserved, created_at, updated_at
		FROM sale_orders WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sale order: %w", err)
	}

	err = r.db.SelectContext(ctx, &so.Items, r.db.Rebind(`
		SELECT id, sale_order_id, product_id, quantity, price
		FROM sale_order_items WHERE sale_order_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale order items: %w", err)
	}

	return &so, nil
}

func (r *SaleOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, stockReserved bool) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE sale_orders SET status = ?, stock_reserved = ?, updated_at = ? WHERE id = ?`),
		status, stockReserved, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale order: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("sale order %s not found", id)
	}
	return nil
}
