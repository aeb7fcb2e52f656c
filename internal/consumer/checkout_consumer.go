package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type CheckoutRecorder interface {
	RecordCheckout(ctx context.Context, event models.CheckoutEvent) error
}

// CheckoutConsumer runs in payment-service and records a transaction per checked-out order.
type CheckoutConsumer struct {
	payments CheckoutRecorder
	logger   *zap.Logger
}

func NewCheckoutConsumer(payments CheckoutRecorder, logger *zap.Logger) *CheckoutConsumer {
	return &CheckoutConsumer{payments: payments, logger: logger}
}

func (c *CheckoutConsumer) Run(ctx context.Context, sub Subscriber, group string, policy messaging.RetryPolicy) error {
	return run(ctx, sub, group, policy, c.logger,
		route{topic: messaging.TopicCheckoutOrder, handler: c.HandleCheckout},
	)
}

func (c *CheckoutConsumer) HandleCheckout(ctx context.Context, msg messaging.Message) error {
	var event models.CheckoutEvent
	if err := decodeJSON(msg, &event); err != nil {
		return err
	}
	c.logger.Info("📥 Checkout received", zap.String("order_id", event.OrderID.String()))
	return c.payments.RecordCheckout(ctx, event)
}
