package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// SagaLogRepository is the append-only record of saga progress.
type SagaLogRepository struct {
	db *sqlx.DB
}

func NewSagaLogRepository(database *PostgresDB) *SagaLogRepository {
	return &SagaLogRepository{db: database.Conn}
}

func (r *SagaLogRepository) Append(ctx context.Context, step models.SagaStep) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO saga_steps (saga_id, step, order_id, payment_id, sale_order_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		step.SagaID, step.Step, step.OrderID, step.PaymentID, step.SaleOrderID, step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append saga step: %w", err)
	}
	return nil
}

// Unfinished returns the steps of every saga that started before olderThan and has
// neither a COMPLETED nor a COMPENSATED record, ordered by saga then append order.
func (r *SagaLogRepository) Unfinished(ctx context.Context, olderThan time.Time) ([]models.SagaStep, error) {
	query := r.db.Rebind(`
		SELECT saga_id, step, order_id, payment_id, sale_order_id, created_at
		FROM saga_steps s
		WHERE NOT EXISTS (
			SELECT 1 FROM saga_steps t
			WHERE t.saga_id = s.saga_id AND t.step IN (?, ?)
		)
		AND s.saga_id IN (
			SELECT saga_id FROM saga_steps GROUP BY saga_id HAVING MIN(created_at) < ?
		)
		ORDER BY s.saga_id, s.id`)

	var steps []models.SagaStep
	err := r.db.SelectContext(ctx, &steps, query,
		models.SagaStepCompleted, models.SagaStepCompensated, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished sagas: %w", err)
	}
	return steps, nil
}
