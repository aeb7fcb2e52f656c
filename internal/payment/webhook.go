package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// PaymentEvent is one decoded provider notification.
type PaymentEvent interface {
	isPaymentEvent()
}

type PaymentRef struct {
	PaymentID string
	OrderID   string
}

type (
	PaymentCreated   struct{ PaymentRef }
	PaymentSucceeded struct{ PaymentRef }
	PaymentCanceled  struct{ PaymentRef }
	PaymentFailed    struct{ PaymentRef }
)

func (PaymentCreated) isPaymentEvent()   {}
func (PaymentSucceeded) isPaymentEvent() {}
func (PaymentCanceled) isPaymentEvent()  {}
func (PaymentFailed) isPaymentEvent()    {}

var ErrInvalidSignature = apperror.Validation("invalid webhook signature")

// StatusPublisher is implemented by publisher.PaymentPublisher.
type StatusPublisher interface {
	PublishStatusUpdate(ctx context.Context, orderID string, status models.OrderStatus) error
}

type WebhookService struct {
	secret    string
	store     TransactionStore
	publisher StatusPublisher
	logger    *zap.Logger
}

func NewWebhookService(secret string, store TransactionStore, publisher StatusPublisher, logger *zap.Logger) *WebhookService {
	return &WebhookService{secret: secret, store: store, publisher: publisher, logger: logger}
}

// ParseEvent verifies the signature and decodes the event. Unknown types yield a nil event.
func (w *WebhookService) ParseEvent(payload []byte, signature string) (PaymentEvent, string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, "", apperror.Wrap(apperror.CategoryValidation, ErrInvalidSignature.Msg, err)
	}

	var build func(PaymentRef) PaymentEvent
	switch event.Type {
	case stripe.EventTypePaymentIntentCreated:
		build = func(r PaymentRef) PaymentEvent { return PaymentCreated{r} }
	case stripe.EventTypePaymentIntentSucceeded:
		build = func(r PaymentRef) PaymentEvent { return PaymentSucceeded{r} }
	case stripe.EventTypePaymentIntentCanceled:
		build = func(r PaymentRef) PaymentEvent { return PaymentCanceled{r} }
	case stripe.EventTypePaymentIntentPaymentFailed:
		build = func(r PaymentRef) PaymentEvent { return PaymentFailed{r} }
	default:
		return nil, string(event.Type), nil
	}

	var pi stripe.PaymentIntent
	if event.Data == nil {
		return nil, string(event.Type), apperror.Validation("webhook event has no data")
	}
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, string(event.Type), apperror.Wrap(apperror.CategoryValidation, "failed to decode payment intent", err)
	}
	if pi.ID == "" {
		return nil, string(event.Type), apperror.Validation("payment intent id is missing")
	}

	return build(PaymentRef{PaymentID: pi.ID, OrderID: pi.Metadata["orderId"]}), string(event.Type), nil
}

// Handle applies one webhook delivery. Deliveries that change nothing publish nothing
// unless an earlier PAID publication for the same payment failed.
func (w *WebhookService) Handle(ctx context.Context, payload []byte, signature string) error {
	event, eventType, err := w.ParseEvent(payload, signature)
	if err != nil {
		return err
	}
	if event == nil {
		w.logger.Info("Ignoring webhook event", zap.String("type", eventType))
		return nil
	}
	return w.Apply(ctx, event)
}

func (w *WebhookService) Apply(ctx context.Context, event PaymentEvent) error {
	switch e := event.(type) {
	case PaymentCreated:
		_, err := w.transition(ctx, e.PaymentRef, models.TransactionCreated)
		return err
	case PaymentSucceeded:
		if _, err := w.transition(ctx, e.PaymentRef, models.TransactionSucceeded); err != nil {
			return err
		}
		return w.publishPaid(ctx, e.PaymentRef)
	case PaymentCanceled:
		_, err := w.transition(ctx, e.PaymentRef, models.TransactionCanceled)
		return err
	case PaymentFailed:
		_, err := w.transition(ctx, e.PaymentRef, models.TransactionFailed)
		return err
	default:
		return fmt.Errorf("unhandled payment event %T", event)
	}
}

func (w *WebhookService) transition(ctx context.Context, ref PaymentRef, status models.TransactionStatus) (bool, error) {
	changed, err := w.store.UpdateStatus(ctx, ref.PaymentID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction %s: %w", ref.PaymentID, err)
	}

	if changed {
		w.logger.Info("🔔 Transaction status updated",
			zap.String("payment_id", ref.PaymentID),
			zap.String("status", string(status)),
		)
	} else {
		w.logger.Debug("Webhook changed nothing",
			zap.String("payment_id", ref.PaymentID),
			zap.String("status", string(status)),
		)
	}
	return changed, nil
}

// publishPaid emits the PAID update for a succeeded transaction that has not been
// published yet. A redelivery after a failed publish therefore retries it.
func (w *WebhookService) publishPaid(ctx context.Context, ref PaymentRef) error {
	txn, err := w.store.GetByPaymentID(ctx, ref.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to load transaction: %w", err)
	}
	if txn == nil || txn.Status != models.TransactionSucceeded || txn.StatusPublished {
		return nil
	}

	orderID := txn.OrderID
	if orderID == "" {
		orderID = ref.OrderID
	}
	if orderID == "" {
		return apperror.Validation(fmt.Sprintf("no order known for payment %s", ref.PaymentID))
	}

	if err := w.publisher.PublishStatusUpdate(ctx, orderID, models.OrderStatusPaid); err != nil {
		return apperror.Upstream("failed to publish order status", err)
	}
	if err := w.store.MarkPublished(ctx, ref.PaymentID); err != nil {
		return err
	}
	w.logger.Info("📤 Published payment status",
		zap.String("payment_id", ref.PaymentID),
		zap.String("order_id", orderID),
	)
	return nil
}
