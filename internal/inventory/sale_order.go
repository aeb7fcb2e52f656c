package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// ErrSaleOrderNotFound is returned by Cancel for an unknown id.
var ErrSaleOrderNotFound = apperror.NotFound("sale order not found")

const conflictRetries = 3

type SaleOrderStore interface {
	Create(ctx context.Context, so *models.SaleOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SaleOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, stockReserved bool) error
}

// SaleOrderService keeps the inventory-side mirror of orders and holds their stock in the ledger.
type SaleOrderService struct {
	ledger *Ledger
	store  SaleOrderStore
	logger *zap.Logger
}

func NewSaleOrderService(ledger *Ledger, store SaleOrderStore, logger *zap.Logger) *SaleOrderService {
	return &SaleOrderService{ledger: ledger, store: store, logger: logger}
}

// Create reserves every item and stores the sale order as PENDING.
// Re-sending an id that already exists returns the stored sale order untouched.
func (s *SaleOrderService) Create(ctx context.Context, req models.CreateSaleOrderRequest) (*models.SaleOrder, error) {
	if req.OrderID == uuid.Nil {
		return nil, apperror.Validation("orderId is required")
	}
	if len(req.Items) == 0 {
		return nil, apperror.Validation("sale order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperror.Validation(fmt.Sprintf("quantity for product %d must be positive", item.ProductID))
		}
	}

	existing, err := s.store.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sale order: %w", err)
	}
	if existing != nil {
		s.logger.Info("Sale order already exists", zap.String("sale_order_id", req.OrderID.String()))
		return existing, nil
	}

	ref := req.OrderID.String()
	var reserved []models.CreateOrderItemRequest
	for _, item := range req.Items {
		if err := s.reserve(ctx, item.ProductID, item.Quantity, ref); err != nil {
			s.releaseAll(ctx, reserved, ref)
			return nil, err
		}
		reserved = append(reserved, item)
	}

	now := time.Now().UTC()
	so := &models.SaleOrder{
		ID:            req.OrderID,
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        models.OrderStatusPending,
		StockReserved: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range req.Items {
		so.Items = append(so.Items, models.SaleOrderItem{
			SaleOrderID: req.OrderID,
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	if err := s.store.Create(ctx, so); err != nil {
		s.releaseAll(ctx, reserved, ref)
		return nil, fmt.Errorf("failed to save sale order: %w", err)
	}

	s.logger.Info("✅ Sale order created",
		zap.String("sale_order_id", ref),
		zap.Int("items", len(so.Items)),
	)
	return so, nil
}

// Cancel marks the sale order CANCELED and gives its reserved stock back. Cancelling twice is a no-op.
func (s *SaleOrderService) Cancel(ctx context.Context, id uuid.UUID) (*models.SaleOrder, error) {
	so, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sale order: %w", err)
	}
	if so == nil {
		return nil, fmt.Errorf("sale order %s: %w", id, ErrSaleOrderNotFound)
	}
	if so.Status == models.OrderStatusCanceled {
		return so, nil
	}

	// The status flips first so a crash mid-release can only strand stock, never release it twice.
	if err := s.store.UpdateStatus(ctx, id, models.OrderStatusCanceled, false); err != nil {
		return nil, fmt.Errorf("failed to cancel sale order: %w", err)
	}

	if so.StockReserved {
		var items []models.CreateOrderItemRequest
		for _, item := range so.Items {
			items = append(items, models.CreateOrderItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		s.releaseAll(ctx, items, id.String())
	}

	so.Status = models.OrderStatusCanceled
	so.StockReserved = false
	s.logger.Info("🗑️ Sale order canceled", zap.String("sale_order_id", id.String()))
	return so, nil
}

// Mirror applies an order snapshot published by the order service.
func (s *SaleOrderService) Mirror(ctx context.Context, order models.Order) error {
	so, err := s.store.GetByID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to look up sale order: %w", err)
	}

	if so == nil {
		now := time.Now().UTC()
		mirror := &models.SaleOrder{
			ID:         order.ID,
			CustomerID: order.CustomerID,
			Amount:     order.Amount,
			Currency:   order.Currency,
			Status:     order.Status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, item := range order.Items {
			mirror.Items = append(mirror.Items, models.SaleOrderItem{
				SaleOrderID: order.ID,
				ProductID:   item.ProductID,
				Quantity:    item.Quantity,
				Price:       item.Price,
			})
		}
		if err := s.store.Create(ctx, mirror); err != nil {
			return fmt.Errorf("failed to mirror order %s: %w", order.ID, err)
		}
		s.logger.Info("📥 Order mirrored", zap.String("order_id", order.ID.String()), zap.Stringer("status", order.Status))
		return nil
	}

	if so.Status == order.Status {
		return nil
	}
	if order.Status == models.OrderStatusCanceled {
		_, err := s.Cancel(ctx, order.ID)
		return err
	}
	if err := s.store.UpdateStatus(ctx, order.ID, order.Status, so.StockReserved); err != nil {
		return fmt.Errorf("failed to update sale order %s: %w", order.ID, err)
	}

	s.logger.Info("🔄 Sale order status synced",
		zap.String("sale_order_id", order.ID.String()),
		zap.Stringer("from", so.Status),
		zap.Stringer("to", order.Status),
	)
	return nil
}

// reserve is the caller-side retry for version conflicts; stock exhaustion is returned immediately.
func (s *SaleOrderService) reserve(ctx context.Context, productID int64, qty int, ref string) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		_, err = s.ledger.Reserve(ctx, productID, qty, ref)
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *SaleOrderService) release(ctx context.Context, productID int64, qty int, ref string) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		_, err = s.ledger.Release(ctx, productID, qty, ref)
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *SaleOrderService) releaseAll(ctx context.Context, items []models.CreateOrderItemRequest, ref string) {
	for _, item := range items {
		if err := s.release(ctx, item.ProductID, item.Quantity, ref); err != nil {
			s.logger.Error("❌ Failed to release reservation",
				zap.Int64("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.String("reference_id", ref),
				zap.Error(err),
			)
		}
	}
}
