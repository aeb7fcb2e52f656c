package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/order"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/requestctx"
)

type memStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]models.Order
}

func newMemStore() *memStore {
	return &memStore{orders: map[uuid.UUID]models.Order{}}
}

func (s *memStore) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	if o.Status == status {
		return false, nil
	}
	o.SetStatus(status)
	s.orders[id] = o
	return true, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCheckout(ctx context.Context, o *models.Order) error {
	return m.Called(ctx, o).Error(0)
}

type mockProducts struct {
	mock.Mock
}

func (m *mockProducts) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Product)
	return p, args.Error(1)
}

func validRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		CustomerID: "cust-1",
		Amount:     20,
		Currency:   "usd",
		Items:      []models.CreateOrderItemRequest{{ProductID: 42, ProductName: "mug", Quantity: 2, Price: 10}},
	}
}

func TestCreateOrder_StartsNew(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())

	o, err := svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, models.OrderStatusNew, o.Status)
	assert.Equal(t, "NEW", o.StatusName)
	assert.Equal(t, models.PaymentMethodCard, o.PaymentMethod)
	require.Len(t, o.Items, 1)
	assert.Equal(t, o.ID, o.Items[0].OrderID)
}

func TestCreateOrder_CustomerFromContext(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	req := validRequest()
	req.CustomerID = ""

	o, err := svc.CreateOrder(requestctx.WithUserID(context.Background(), "user-7"), req)
	require.NoError(t, err)
	assert.Equal(t, "user-7", o.CustomerID)
}

func TestCreateOrder_FillsMissingNames(t *testing.T) {
	products := &mockProducts{}
	products.On("GetProduct", mock.Anything, int64(42)).Return(&models.Product{ID: 42, Name: "blue mug"}, nil)
	svc := order.NewService(newMemStore(), &mockPublisher{}, products, zap.NewNop())

	req := validRequest()
	req.Items[0].ProductName = ""
	o, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "blue mug", o.Items[0].ProductName)
	products.AssertExpectations(t)
}

func TestCreateOrder_LookupFailureIsNotFatal(t *testing.T) {
	products := &mockProducts{}
	products.On("GetProduct", mock.Anything, int64(42)).Return(nil, apperror.Upstream("product-service down", nil))
	svc := order.NewService(newMemStore(), &mockPublisher{}, products, zap.NewNop())

	req := validRequest()
	req.Items[0].ProductName = ""
	o, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, o.Items[0].ProductName)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())

	cases := map[string]func(*models.CreateOrderRequest){
		"zero amount":    func(r *models.CreateOrderRequest) { r.Amount = 0 },
		"no currency":    func(r *models.CreateOrderRequest) { r.Currency = "" },
		"no items":       func(r *models.CreateOrderRequest) { r.Items = nil },
		"zero quantity":  func(r *models.CreateOrderRequest) { r.Items[0].Quantity = 0 },
		"unknown method": func(r *models.CreateOrderRequest) { r.PaymentMethod = "barter" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.CreateOrder(context.Background(), req)
			assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	_, err := svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestCancelOrder_Idempotent(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		canceled, err := svc.CancelOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	}
}

func TestCheckout_PublishesThenPays(t *testing.T) {
	pub := &mockPublisher{}
	svc := order.NewService(newMemStore(), pub, nil, zap.NewNop())
	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	pub.On("PublishCheckout", mock.Anything, mock.MatchedBy(func(p *models.Order) bool { return p.ID == o.ID })).Return(nil).Once()

	paid, err := svc.Checkout(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, paid.Status)
	pub.AssertExpectations(t)
}

func TestCheckout_PublishFailureKeepsStatus(t *testing.T) {
	pub := &mockPublisher{}
	svc := order.NewService(newMemStore(), pub, nil, zap.NewNop())
	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	pub.On("PublishCheckout", mock.Anything, mock.Anything).Return(errors.New("broker unreachable"))

	_, err = svc.Checkout(ctx, o.ID)
	assert.Equal(t, apperror.CategoryUpstreamUnavailable, apperror.CategoryOf(err))

	current, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, current.Status)
}

func TestCheckout_RejectsCanceled(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, o.ID)
	assert.ErrorIs(t, err, order.ErrOrderCanceled)
}

func TestChangeStatus_ReportsChange(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, validRequest())
	require.NoError(t, err)

	changed, updated, err := svc.ChangeStatus(ctx, o.ID, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "PAID", updated.StatusName)

	changed, _, err = svc.ChangeStatus(ctx, o.ID, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = svc.ChangeStatus(ctx, o.ID, models.OrderStatus(99))
	assert.Equal(t, apperror.CategoryValidation, apperror.CategoryOf(err))
}

func TestChangeStatus_UnknownOrder(t *testing.T) {
	svc := order.NewService(newMemStore(), &mockPublisher{}, nil, zap.NewNop())
	_, _, err := svc.ChangeStatus(context.Background(), uuid.New(), models.OrderStatusPaid)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
