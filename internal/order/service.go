package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/requestctx"
)

var (
	ErrOrderNotFound = apperror.NotFound("order not found")
	ErrOrderCanceled = apperror.Conflict("order is canceled")
)

type Store interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// UpdateStatus reports false when the order already had status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (bool, error)
}

type Publisher interface {
	PublishCheckout(ctx context.Context, order *models.Order) error
}

// ProductLookup fills in item names the client left out. Optional.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
}

type Service struct {
	store     Store
	publisher Publisher
	products  ProductLookup
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store Store, publisher Publisher, products ProductLookup, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		products:  products,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validate(req models.CreateOrderRequest) error {
	if req.Amount <= 0 {
		return apperror.Validation("amount must be positive")
	}
	if req.Currency == "" {
		return apperror.Validation("currency is required")
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	if len(req.Items) == 0 {
		return apperror.Validation("order needs at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return apperror.Validation(fmt.Sprintf("quantity for product %d must be positive", item.ProductID))
		}
	}
	return nil
}

// CreateOrder stores a NEW order. The customer defaults to the caller in ctx.
func (s *Service) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if req.CustomerID == "" {
		req.CustomerID = requestctx.UserID(ctx)
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCard
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.SetStatus(models.OrderStatusNew)

	for _, item := range req.Items {
		name := item.ProductName
		if name == "" && s.products != nil {
			if p, err := s.products.GetProduct(ctx, item.ProductID); err == nil {
				name = p.Name
			} else {
				s.logger.Warn("⚠️ Product lookup failed", zap.Int64("product_id", item.ProductID), zap.Error(err))
			}
		}
		order.Items = append(order.Items, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("✅ Order created", zap.String("order_id", order.ID.String()), zap.String("customer_id", order.CustomerID))
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder is idempotent.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	_, order, err := s.ChangeStatus(ctx, id, models.OrderStatusCanceled)
	return order, err
}

// Checkout announces the checkout and marks the order PAID.
func (s *Service) Checkout(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusCanceled {
		return nil, ErrOrderCanceled
	}

	if err := s.publisher.PublishCheckout(ctx, order); err != nil {
		return nil, apperror.Upstream("failed to publish checkout", err)
	}

	_, order, err = s.ChangeStatus(ctx, id, models.OrderStatusPaid)
	return order, err
}

// ChangeStatus sets status and reports whether anything changed.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (bool, *models.Order, error) {
	if !status.Valid() {
		return false, nil, apperror.Validation(fmt.Sprintf("unknown order status %d", status))
	}

	changed, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return false, nil, fmt.Errorf("failed to update order status: %w", err)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return false, nil, err
	}

	if changed {
		s.logger.Info("🔄 Order status changed", zap.String("order_id", id.String()), zap.String("status", status.String()))
	}
	return changed, order, nil
}
