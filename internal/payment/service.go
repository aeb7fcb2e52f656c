package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

var ErrTransactionNotFound = apperror.NotFound("transaction not found")

// TransactionStore is implemented by db.TransactionRepository.
type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, paymentID string, status models.TransactionStatus) (bool, error)
	MarkPublished(ctx context.Context, paymentID string) error
}

type Service struct {
	provider Provider
	store    TransactionStore
	logger   *zap.Logger
}

func NewService(provider Provider, store TransactionStore, logger *zap.Logger) *Service {
	return &Service{provider: provider, store: store, logger: logger}
}

func validateRequest(req models.PaymentRequest) error {
	if req.OrderID == "" {
		return apperror.Validation("orderId is required")
	}
	if req.Amount <= 0 {
		return apperror.Validation("amount must be positive")
	}
	if req.Currency == "" {
		return apperror.Validation("currency is required")
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return apperror.Validation(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	return nil
}

// CreatePaymentIntent asks the provider for an intent and records it as CREATED.
func (s *Service) CreatePaymentIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCard
	}

	intent, err := s.provider.CreateIntent(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &models.Transaction{
		PaymentID:     intent.PaymentID,
		OrderID:       req.OrderID,
		CustomerID:    req.CustomerID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		Status:        models.TransactionCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.store.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	s.logger.Info("💳 Payment intent created",
		zap.String("payment_id", intent.PaymentID),
		zap.String("order_id", req.OrderID),
	)
	return intent, nil
}

// RefundPayment refunds a payment this service created.
func (s *Service) RefundPayment(ctx context.Context, paymentID string) (*models.Refund, error) {
	txn, err := s.store.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}

	refund, err := s.provider.Refund(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("↩️ Payment refunded",
		zap.String("payment_id", paymentID),
		zap.String("order_id", txn.OrderID),
		zap.String("refund_status", refund.Status),
	)
	return refund, nil
}

// CheckoutPaymentID is the transaction key used for orders that arrive through checkout.
func CheckoutPaymentID(orderID string) string {
	return "ck_" + orderID
}

// RecordCheckout stores a CREATED transaction for a checked-out order. Redelivery is a no-op.
func (s *Service) RecordCheckout(ctx context.Context, event models.CheckoutEvent) error {
	method := event.PaymentMethod
	if method == "" {
		method = models.PaymentMethodCard
	}

	now := time.Now().UTC()
	created, err := s.store.Create(ctx, &models.Transaction{
		PaymentID:     CheckoutPaymentID(event.OrderID.String()),
		OrderID:       event.OrderID.String(),
		CustomerID:    event.CustomerID,
		Amount:        event.Amount,
		Currency:      event.Currency,
		PaymentMethod: method,
		Status:        models.TransactionCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return fmt.Errorf("failed to record checkout: %w", err)
	}

	if created {
		s.logger.Info("🧾 Checkout recorded", zap.String("order_id", event.OrderID.String()))
	} else {
		s.logger.Debug("Checkout already recorded", zap.String("order_id", event.OrderID.String()))
	}
	return nil
}
