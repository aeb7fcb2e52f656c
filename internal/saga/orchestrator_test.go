package saga_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/inventory"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/saga"
)

type mockOrders struct{ mock.Mock }

func (m *mockOrders) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrders) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) CreatePaymentIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	args := m.Called(ctx, req)
	p, _ := args.Get(0).(*models.PaymentIntent)
	return p, args.Error(1)
}

func (m *mockPayments) RefundPayment(ctx context.Context, paymentID string) (*models.Refund, error) {
	args := m.Called(ctx, paymentID)
	r, _ := args.Get(0).(*models.Refund)
	return r, args.Error(1)
}

type mockInventory struct{ mock.Mock }

func (m *mockInventory) CreateSaleOrder(ctx context.Context, req models.CreateSaleOrderRequest) (*models.SaleOrder, error) {
	args := m.Called(ctx, req)
	so, _ := args.Get(0).(*models.SaleOrder)
	return so, args.Error(1)
}

func (m *mockInventory) CancelSaleOrder(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// memLog is an in-memory StepLog. failures makes the next appends of a step fail.
type memLog struct {
	mu       sync.Mutex
	steps    []models.SagaStep
	failures map[models.SagaStepName]int
}

func (l *memLog) Append(_ context.Context, s models.SagaStep) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures[s.Step] > 0 {
		l.failures[s.Step]--
		return errors.New("database unavailable")
	}
	l.steps = append(l.steps, s)
	return nil
}

func (l *memLog) Unfinished(_ context.Context, olderThan time.Time) ([]models.SagaStep, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	done := map[uuid.UUID]bool{}
	started := map[uuid.UUID]time.Time{}
	for _, s := range l.steps {
		if s.Step == models.SagaStepCompleted || s.Step == models.SagaStepCompensated {
			done[s.SagaID] = true
		}
		if s.Step == models.SagaStepStarted {
			started[s.SagaID] = s.CreatedAt
		}
	}
	var out []models.SagaStep
	for _, s := range l.steps {
		if !done[s.SagaID] && started[s.SagaID].Before(olderThan) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *memLog) names() []models.SagaStepName {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.SagaStepName
	for _, s := range l.steps {
		out = append(out, s.Step)
	}
	return out
}

type fixture struct {
	orders    *mockOrders
	payments  *mockPayments
	inventory *mockInventory
	log       *memLog
	saga      *saga.Orchestrator
	order     *models.Order
	req       models.CreateOrderRequest
}

func newFixture() *fixture {
	f := &fixture{
		orders:    &mockOrders{},
		payments:  &mockPayments{},
		inventory: &mockInventory{},
		log:       &memLog{},
	}
	f.saga = saga.NewOrchestrator(f.orders, f.payments, f.inventory, f.log, zap.NewNop())
	f.req = models.CreateOrderRequest{
		CustomerID: "c-1",
		Amount:     30,
		Currency:   "usd",
		Items:      []models.CreateOrderItemRequest{{ProductID: 42, Quantity: 3, Price: 10}},
	}
	f.order = &models.Order{
		ID:         uuid.New(),
		CustomerID: "c-1",
		Amount:     30,
		Currency:   "usd",
		Items:      []models.OrderItem{{ProductID: 42, Quantity: 3, Price: 10}},
	}
	f.order.SetStatus(models.OrderStatusNew)
	return f
}

func (f *fixture) assertAll(t *testing.T) {
	f.orders.AssertExpectations(t)
	f.payments.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
}

func TestCreateSagaOrder_HappyPath(t *testing.T) {
	f := newFixture()
	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r models.PaymentRequest) bool {
		return r.OrderID == f.order.ID.String() && r.Amount == 30
	})).Return(&models.PaymentIntent{PaymentID: "pi_1", ClientSecret: "cs_1"}, nil)
	f.inventory.On("CreateSaleOrder", mock.Anything, mock.MatchedBy(func(r models.CreateSaleOrderRequest) bool {
		return r.OrderID == f.order.ID && len(r.Items) == 1 && r.Items[0].Quantity == 3
	})).Return(&models.SaleOrder{ID: f.order.ID}, nil)

	res, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.ClientSecret)
	assert.Equal(t, "pi_1", res.PaymentID)
	assert.Equal(t, f.order.ID, res.OrderID)

	f.assertAll(t)
	f.payments.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything)
	assert.Equal(t, []models.SagaStepName{
		models.SagaStepStarted,
		models.SagaStepOrderCreated,
		models.SagaStepPaymentAuthorized,
		models.SagaStepInventoryDebited,
		models.SagaStepCompleted,
	}, f.log.names())
}

func TestCreateSagaOrder_PaymentFailureCancelsOrderOnly(t *testing.T) {
	f := newFixture()
	cause := apperror.Upstream("failed to call payment-service", errors.New("connection refused"))

	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.Anything).Return(nil, cause)
	f.orders.On("CancelOrder", mock.Anything, f.order.ID).Return(f.order, nil)

	res, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "saga: create payment intent: ")

	f.assertAll(t)
	f.inventory.AssertNotCalled(t, "CreateSaleOrder", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "CancelSaleOrder", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything)
	assert.Equal(t, models.SagaStepCompensated, f.log.names()[len(f.log.names())-1])
}

func TestCreateSagaOrder_InventoryTimeoutCompensatesEverything(t *testing.T) {
	f := newFixture()
	cause := apperror.Upstream("failed to call inventory-service", context.DeadlineExceeded)

	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(&models.PaymentIntent{PaymentID: "pi_2", ClientSecret: "cs_2"}, nil)
	f.inventory.On("CreateSaleOrder", mock.Anything, mock.Anything).Return(nil, cause)

	var calls []string
	f.inventory.On("CancelSaleOrder", mock.Anything, f.order.ID).Return(nil).
		Run(func(mock.Arguments) { calls = append(calls, "cancel-sale-order") })
	f.payments.On("RefundPayment", mock.Anything, "pi_2").Return(&models.Refund{RefundID: "re_1"}, nil).
		Run(func(mock.Arguments) { calls = append(calls, "refund") })
	f.orders.On("CancelOrder", mock.Anything, f.order.ID).Return(f.order, nil).
		Run(func(mock.Arguments) { calls = append(calls, "cancel-order") })

	_, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "saga: create sale order: ")

	f.assertAll(t)
	assert.Equal(t, []string{"cancel-sale-order", "refund", "cancel-order"}, calls)
}

func TestCreateSagaOrder_OutOfStockSkipsSaleOrderCancel(t *testing.T) {
	f := newFixture()
	cause := inventory.ErrInsufficientStock

	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(&models.PaymentIntent{PaymentID: "pi_3"}, nil)
	f.inventory.On("CreateSaleOrder", mock.Anything, mock.Anything).Return(nil, cause)
	f.payments.On("RefundPayment", mock.Anything, "pi_3").Return(&models.Refund{}, nil)
	f.orders.On("CancelOrder", mock.Anything, f.order.ID).Return(f.order, nil)

	_, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	f.assertAll(t)
	f.inventory.AssertNotCalled(t, "CancelSaleOrder", mock.Anything, mock.Anything)
}

func TestCreateSagaOrder_CompensationFailureDoesNotMaskCause(t *testing.T) {
	f := newFixture()
	cause := inventory.ErrInsufficientStock

	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(&models.PaymentIntent{PaymentID: "pi_4"}, nil)
	f.inventory.On("CreateSaleOrder", mock.Anything, mock.Anything).Return(nil, cause)
	f.payments.On("RefundPayment", mock.Anything, "pi_4").Return(nil, errors.New("stripe down"))
	f.orders.On("CancelOrder", mock.Anything, f.order.ID).Return(f.order, nil)

	_, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Error(), "stripe down")

	// the remaining compensation still ran
	f.assertAll(t)
	assert.NotContains(t, f.log.names(), models.SagaStepCompensated)
}

func TestCreateSagaOrder_OrderFailureCompensatesNothing(t *testing.T) {
	f := newFixture()
	f.orders.On("CreateOrder", mock.Anything, f.req).Return(nil, apperror.Validation("amount must be positive"))

	_, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	assert.ErrorIs(t, err, apperror.Kind(apperror.CategoryValidation))
	assert.Contains(t, err.Error(), "saga: create order: ")

	f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
}

func TestRecover_CompensatesStaleUnfinishedSagas(t *testing.T) {
	f := newFixture()
	old := time.Now().UTC().Add(-time.Hour)
	crashed, finished := uuid.New(), uuid.New()
	orderID := uuid.New()

	for _, s := range []models.SagaStep{
		{SagaID: crashed, Step: models.SagaStepStarted, CreatedAt: old},
		{SagaID: crashed, Step: models.SagaStepOrderCreated, OrderID: orderID.String(), CreatedAt: old},
		{SagaID: crashed, Step: models.SagaStepPaymentAuthorized, PaymentID: "pi_9", CreatedAt: old},
		{SagaID: finished, Step: models.SagaStepStarted, CreatedAt: old},
		{SagaID: finished, Step: models.SagaStepCompleted, CreatedAt: old},
	} {
		require.NoError(t, f.log.Append(context.Background(), s))
	}

	f.inventory.On("CancelSaleOrder", mock.Anything, orderID).Return(inventory.ErrSaleOrderNotFound)
	f.payments.On("RefundPayment", mock.Anything, "pi_9").Return(&models.Refund{}, nil)
	f.orders.On("CancelOrder", mock.Anything, orderID).Return(&models.Order{ID: orderID}, nil)

	n, err := f.saga.Recover(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.assertAll(t)

	// a second pass finds nothing left to do
	n, err = f.saga.Recover(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecover_WithoutLogIsNoop(t *testing.T) {
	o := saga.NewOrchestrator(&mockOrders{}, &mockPayments{}, &mockInventory{}, nil, zap.NewNop())
	n, err := o.Recover(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateSagaOrder_RetriesCompletedRecord(t *testing.T) {
	f := newFixture()
	f.log.failures = map[models.SagaStepName]int{models.SagaStepCompleted: 2}
	f.orders.On("CreateOrder", mock.Anything, f.req).Return(f.order, nil)
	f.payments.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(&models.PaymentIntent{PaymentID: "pi_1", ClientSecret: "secret_1"}, nil)
	f.inventory.On("CreateSaleOrder", mock.Anything, mock.Anything).Return(&models.SaleOrder{ID: f.order.ID}, nil)

	_, err := f.saga.CreateSagaOrder(context.Background(), f.req)
	require.NoError(t, err)
	assert.Contains(t, f.log.names(), models.SagaStepCompleted)
	f.assertAll(t)
}

func TestRecover_MarksDebitedSagaCompletedWithoutCompensating(t *testing.T) {
	f := newFixture()
	old := time.Now().UTC().Add(-time.Hour)
	done := uuid.New()
	orderID := uuid.New()

	for _, s := range []models.SagaStep{
		{SagaID: done, Step: models.SagaStepStarted, CreatedAt: old},
		{SagaID: done, Step: models.SagaStepOrderCreated, OrderID: orderID.String(), CreatedAt: old},
		{SagaID: done, Step: models.SagaStepPaymentAuthorized, PaymentID: "pi_7", CreatedAt: old},
		{SagaID: done, Step: models.SagaStepInventoryDebited, SaleOrderID: orderID.String(), CreatedAt: old},
	} {
		require.NoError(t, f.log.Append(context.Background(), s))
	}

	n, err := f.saga.Recover(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
	f.payments.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "CancelSaleOrder", mock.Anything, mock.Anything)

	unfinished, err := f.log.Unfinished(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, unfinished)
}
