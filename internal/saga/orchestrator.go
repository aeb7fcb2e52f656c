package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// Forward step names used in returned errors.
const (
	StepCreateOrder   = "create order"
	StepPaymentIntent = "create payment intent"
	StepSaleOrder     = "create sale order"
)

const (
	stepLogRetries       = 3
	stepLogRetryInterval = 100 * time.Millisecond
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error)
	RefundPayment(ctx context.Context, paymentID string) (*models.Refund, error)
}

type InventoryGateway interface {
	CreateSaleOrder(ctx context.Context, req models.CreateSaleOrderRequest) (*models.SaleOrder, error)
	CancelSaleOrder(ctx context.Context, id uuid.UUID) error
}

// StepLog persists saga progress so that a crashed saga can be compensated later.
type StepLog interface {
	Append(ctx context.Context, step models.SagaStep) error
	Unfinished(ctx context.Context, olderThan time.Time) ([]models.SagaStep, error)
}

// Result is what a successful saga hands back to the caller.
type Result struct {
	OrderID      uuid.UUID `json:"orderId"`
	PaymentID    string    `json:"paymentId"`
	ClientSecret string    `json:"clientSecret"`
}

// state holds the ids produced so far. A zero id means its step never completed.
type state struct {
	sagaID      uuid.UUID
	orderID     uuid.UUID
	paymentID   string
	saleOrderID uuid.UUID
}

// Orchestrator runs the order, payment and inventory steps of a checkout and undoes
// the completed ones when a later step fails.
type Orchestrator struct {
	orders    OrderCreator
	payments  PaymentGateway
	inventory InventoryGateway
	steps     StepLog
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewOrchestrator accepts a nil steps; progress then lives only in memory.
func NewOrchestrator(orders OrderCreator, payments PaymentGateway, inventory InventoryGateway, steps StepLog, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		orders:    orders,
		payments:  payments,
		inventory: inventory,
		steps:     steps,
		logger:    logger,
		tracer:    otel.Tracer("shopsaga/saga"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSagaOrder creates the order, opens a payment intent and reserves stock.
// On failure every completed step is compensated in reverse and the original
// error is returned as "saga: <step>: <cause>".
func (o *Orchestrator) CreateSagaOrder(ctx context.Context, req models.CreateOrderRequest) (*Result, error) {
	st := &state{sagaID: uuid.New()}

	ctx, span := o.tracer.Start(ctx, "saga.create-order", trace.WithAttributes(
		attribute.String("saga.id", st.sagaID.String()),
	))
	defer span.End()

	if err := o.record(ctx, st, models.SagaStepStarted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("saga: start: %w", err)
	}

	intent, step, err := o.forward(ctx, span, st, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("❌ Saga step failed, compensating",
			zap.String("saga_id", st.sagaID.String()),
			zap.String("step", step),
			zap.Error(err),
		)

		// compensation must run even if the caller has gone away
		cctx := context.WithoutCancel(ctx)
		if cerr := o.compensate(cctx, st); cerr == nil {
			span.AddEvent(string(models.SagaStepCompensated))
			o.logStep(cctx, st, models.SagaStepCompensated)
		}
		return nil, fmt.Errorf("saga: %s: %w", step, err)
	}

	span.AddEvent(string(models.SagaStepCompleted))
	o.logStep(ctx, st, models.SagaStepCompleted)
	o.logger.Info("✅ Saga completed",
		zap.String("saga_id", st.sagaID.String()),
		zap.String("order_id", st.orderID.String()),
		zap.String("payment_id", st.paymentID),
	)

	return &Result{
		OrderID:      st.orderID,
		PaymentID:    intent.PaymentID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

func (o *Orchestrator) forward(ctx context.Context, span trace.Span, st *state, req models.CreateOrderRequest) (*models.PaymentIntent, string, error) {
	order, err := o.orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, StepCreateOrder, err
	}
	st.orderID = order.ID
	span.AddEvent(string(models.SagaStepOrderCreated), trace.WithAttributes(attribute.String("order.id", order.ID.String())))
	o.logStep(ctx, st, models.SagaStepOrderCreated)

	intent, err := o.payments.CreatePaymentIntent(ctx, models.PaymentRequest{
		OrderID:       order.ID.String(),
		CustomerID:    order.CustomerID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
	})
	if err != nil {
		return nil, StepPaymentIntent, err
	}
	st.paymentID = intent.PaymentID
	span.AddEvent(string(models.SagaStepPaymentAuthorized), trace.WithAttributes(attribute.String("payment.id", intent.PaymentID)))
	o.logStep(ctx, st, models.SagaStepPaymentAuthorized)

	items := make([]models.CreateOrderItemRequest, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.CreateOrderItemRequest{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	so, err := o.inventory.CreateSaleOrder(ctx, models.CreateSaleOrderRequest{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Items:      items,
	})
	if err != nil {
		if outcomeUnknown(err) {
			// the sale order may exist even though the call failed; it shares the order's id
			st.saleOrderID = order.ID
		}
		return nil, StepSaleOrder, err
	}
	st.saleOrderID = so.ID
	span.AddEvent(string(models.SagaStepInventoryDebited))
	o.logStep(ctx, st, models.SagaStepInventoryDebited)

	return intent, "", nil
}

// compensate undoes completed steps newest first. Failures are logged and joined.
func (o *Orchestrator) compensate(ctx context.Context, st *state) error {
	var errs []error
	fields := []zap.Field{zap.String("saga_id", st.sagaID.String())}

	if st.saleOrderID != uuid.Nil {
		err := o.inventory.CancelSaleOrder(ctx, st.saleOrderID)
		if errors.Is(err, apperror.Kind(apperror.CategoryNotFound)) {
			err = nil
		}
		if err != nil {
			o.logger.Error("❌ Compensation failed: cancel sale order", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Errorf("cancel sale order %s: %w", st.saleOrderID, err))
		} else {
			o.logger.Info("↩️ Sale order canceled", append(fields, zap.String("sale_order_id", st.saleOrderID.String()))...)
		}
	}

	if st.paymentID != "" {
		if _, err := o.payments.RefundPayment(ctx, st.paymentID); err != nil {
			o.logger.Error("❌ Compensation failed: refund payment", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Errorf("refund payment %s: %w", st.paymentID, err))
		} else {
			o.logger.Info("↩️ Payment refunded", append(fields, zap.String("payment_id", st.paymentID))...)
		}
	}

	if st.orderID != uuid.Nil {
		if _, err := o.orders.CancelOrder(ctx, st.orderID); err != nil {
			o.logger.Error("❌ Compensation failed: cancel order", append(fields, zap.Error(err))...)
			errs = append(errs, fmt.Errorf("cancel order %s: %w", st.orderID, err))
		} else {
			o.logger.Info("↩️ Order canceled", append(fields, zap.String("order_id", st.orderID.String()))...)
		}
	}

	return errors.Join(errs...)
}

// outcomeUnknown reports whether a failed remote call may still have been applied.
func outcomeUnknown(err error) bool {
	return errors.Is(err, apperror.Kind(apperror.CategoryUpstreamUnavailable)) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (o *Orchestrator) record(ctx context.Context, st *state, step models.SagaStepName) error {
	if o.steps == nil {
		return nil
	}
	entry := models.SagaStep{
		SagaID:    st.sagaID,
		Step:      step,
		CreatedAt: o.now(),
	}
	switch step {
	case models.SagaStepOrderCreated:
		entry.OrderID = st.orderID.String()
	case models.SagaStepPaymentAuthorized:
		entry.PaymentID = st.paymentID
	case models.SagaStepInventoryDebited:
		entry.SaleOrderID = st.saleOrderID.String()
	}
	return o.steps.Append(ctx, entry)
}

// logStep records a step whose failure must not abort the saga. Appends are retried
// because a missing record makes Recover misjudge the saga.
func (o *Orchestrator) logStep(ctx context.Context, st *state, step models.SagaStepName) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(stepLogRetryInterval), stepLogRetries),
		ctx,
	)
	if err := backoff.Retry(func() error { return o.record(ctx, st, step) }, policy); err != nil {
		o.logger.Warn("⚠️ Failed to record saga step",
			zap.String("saga_id", st.sagaID.String()),
			zap.String("step", string(step)),
			zap.Error(err),
		)
	}
}

// Recover compensates sagas that started more than olderThan ago and never reached
// COMPLETED or COMPENSATED, e.g. because the process died midway. A saga whose
// INVENTORY_DEBITED step is recorded finished every forward step; it is marked
// COMPLETED instead. Recover returns how many sagas were fully compensated.
func (o *Orchestrator) Recover(ctx context.Context, olderThan time.Duration) (int, error) {
	if o.steps == nil {
		return 0, nil
	}

	steps, err := o.steps.Unfinished(ctx, o.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to load unfinished sagas: %w", err)
	}

	var order []uuid.UUID
	states := make(map[uuid.UUID]*state)
	debited := make(map[uuid.UUID]bool)
	for _, s := range steps {
		st, ok := states[s.SagaID]
		if !ok {
			st = &state{sagaID: s.SagaID}
			states[s.SagaID] = st
			order = append(order, s.SagaID)
		}
		switch s.Step {
		case models.SagaStepOrderCreated:
			if id, err := uuid.Parse(s.OrderID); err == nil {
				st.orderID = id
			}
		case models.SagaStepPaymentAuthorized:
			st.paymentID = s.PaymentID
		case models.SagaStepInventoryDebited:
			if id, err := uuid.Parse(s.SaleOrderID); err == nil {
				st.saleOrderID = id
			}
			debited[s.SagaID] = true
		}
	}

	recovered := 0
	var errs []error
	for _, id := range order {
		st := states[id]
		if debited[id] {
			o.logger.Info("✅ Unfinished saga had completed, marking it",
				zap.String("saga_id", id.String()),
				zap.String("order_id", st.orderID.String()),
			)
			o.logStep(ctx, st, models.SagaStepCompleted)
			continue
		}
		if st.saleOrderID == uuid.Nil && st.paymentID != "" {
			// the process may have died inside the sale order call
			st.saleOrderID = st.orderID
		}
		o.logger.Warn("⚠️ Recovering unfinished saga",
			zap.String("saga_id", id.String()),
			zap.String("order_id", st.orderID.String()),
			zap.String("payment_id", st.paymentID),
		)
		if err := o.compensate(ctx, st); err != nil {
			errs = append(errs, fmt.Errorf("saga %s: %w", id, err))
			continue
		}
		o.logStep(ctx, st, models.SagaStepCompensated)
		recovered++
	}

	return recovered, errors.Join(errs...)
}
