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

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(database *PostgresDB) *OrderRepository {
	return &OrderRepository{db: database.Conn}
}

// Create inserts a new order with items
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO orders (id, customer_id, amount, currency, payment_method, status, status_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		order.ID, order.CustomerID, order.Amount, order.Currency, order.PaymentMethod,
		order.Status, order.StatusName, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := r.db.Rebind(`
		INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
		VALUES (?, ?, ?, ?, ?)`)
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		_, err = tx.ExecContext(ctx, itemQuery,
			order.ID,
			order.Items[i].ProductID,
			order.Items[i].ProductName,
			order.Items[i].Quantity,
			order.Items[i].Price,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single order with items, or nil when it does not exist
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, r.db.Rebind(`
		SELECT id, customer_id, amount, currency, payment_method, status, status_name, created_at, updated_at
		FROM orders WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	err = r.db.SelectContext(ctx, &order.Items, r.db.Rebind(`
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items WHERE order_id = ? ORDER BY id`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}

	return &order, nil
}

// UpdateStatus sets the status and reports whether the stored value actually changed.
// An unknown id yields (false, nil); callers tell that apart with GetByID.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE orders SET status = ?, status_name = ?, updated_at = ?
		WHERE id = ? AND status <> ?`),
		status, status.String(), time.Now().UTC(), id, status,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}
