package models

import (
	"time"

	"github.com/google/uuid"
)

type SagaStepName string

const (
	SagaStepStarted           SagaStepName = "STARTED"
	SagaStepOrderCreated      SagaStepName = "ORDER_CREATED"
	SagaStepPaymentAuthorized SagaStepName = "PAYMENT_AUTHORIZED"
	SagaStepInventoryDebited  SagaStepName = "INVENTORY_DEBITED"
	SagaStepCompleted         SagaStepName = "COMPLETED"
	SagaStepCompensated       SagaStepName = "COMPENSATED"
)

// SagaStep is one append-only progress record. Only the id produced by that step is set.
type SagaStep struct {
	SagaID      uuid.UUID    `db:"saga_id"`
	Step        SagaStepName `db:"step"`
	OrderID     string       `db:"order_id"`
	PaymentID   string       `db:"payment_id"`
	SaleOrderID string       `db:"sale_order_id"`
	CreatedAt   time.Time    `db:"created_at"`
}
