package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// TransactionRepository stores payment transactions keyed by the provider's payment id.
type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(database *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: database.Conn}
}

// Create inserts the transaction unless one with the same payment id exists; it reports whether a row was written.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO transactions
			(payment_id, order_id, customer_id, amount, currency, payment_method, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (payment_id) DO NOTHING`),
		t.PaymentID, t.OrderID, t.CustomerID, t.Amount, t.Currency, t.PaymentMethod, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// GetByPaymentID returns nil when the payment id is unknown
func (r *TransactionRepository) GetByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error) {
	var t models.Transaction
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`
		SELECT payment_id, order_id, customer_id, amount, currency, payment_method, status, status_published, created_at, updated_at
		FROM transactions WHERE payment_id = ?`), paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// transitionSources lists the states each status may be entered from. A succeeded or
// canceled transaction is final; created is only ever written by Create.
var transitionSources = map[models.TransactionStatus][]models.TransactionStatus{
	models.TransactionSucceeded: {models.TransactionCreated, models.TransactionFailed},
	models.TransactionCanceled:  {models.TransactionCreated, models.TransactionFailed},
	models.TransactionFailed:    {models.TransactionCreated},
}

// UpdateStatus moves the transaction to status when its current state allows it and
// reports whether the stored value changed. Out-of-order or repeated deliveries are no-ops.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, paymentID string, status models.TransactionStatus) (bool, error) {
	sources := transitionSources[status]
	if len(sources) == 0 {
		return false, nil
	}

	query, args, err := sqlx.In(`
		UPDATE transactions SET status = ?, updated_at = ?
		WHERE payment_id = ? AND status IN (?)`,
		status, time.Now().UTC(), paymentID, sources,
	)
	if err != nil {
		return false, fmt.Errorf("failed to build transaction update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// MarkPublished records that the status update for a succeeded payment was published.
func (r *TransactionRepository) MarkPublished(ctx context.Context, paymentID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE transactions SET status_published = ?, updated_at = ?
		WHERE payment_id = ?`),
		true, time.Now().UTC(), paymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark transaction published: %w", err)
	}
	return nil
}
