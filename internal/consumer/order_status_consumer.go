package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type StatusChanger interface {
	ChangeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) (bool, *models.Order, error)
}

type SnapshotPublisher interface {
	PublishOrderSnapshot(ctx context.Context, order *models.Order) error
}

// OrderStatusConsumer applies status updates from payment-service to orders.
type OrderStatusConsumer struct {
	orders    StatusChanger
	snapshots SnapshotPublisher
	logger    *zap.Logger
}

func NewOrderStatusConsumer(orders StatusChanger, snapshots SnapshotPublisher, logger *zap.Logger) *OrderStatusConsumer {
	return &OrderStatusConsumer{orders: orders, snapshots: snapshots, logger: logger}
}

func (c *OrderStatusConsumer) Run(ctx context.Context, sub Subscriber, group string, policy messaging.RetryPolicy) error {
	return run(ctx, sub, group, policy, c.logger,
		route{topic: messaging.TopicUpdateOrderStatus, handler: c.HandleStatusUpdate},
	)
}

// HandleStatusUpdate applies the status and forwards the order snapshot to inventory.
// A redelivered update that changes nothing still forwards the snapshot, so a publish
// that failed after the status was stored is retried; inventory mirrors by order id.
func (c *OrderStatusConsumer) HandleStatusUpdate(ctx context.Context, msg messaging.Message) error {
	var event models.StatusUpdateEvent
	if err := decodeJSON(msg, &event); err != nil {
		return err
	}

	id, err := uuid.Parse(event.OrderID)
	if err != nil {
		return messaging.Permanent(fmt.Errorf("validation failed: order id %q: %w", event.OrderID, err))
	}
	status, err := models.ParseOrderStatus(event.Status)
	if err != nil {
		return messaging.Permanent(fmt.Errorf("validation failed: %w", err))
	}

	changed, order, err := c.orders.ChangeStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, apperror.Kind(apperror.CategoryNotFound)) {
			return messaging.Permanent(err)
		}
		return err
	}
	if order == nil || order.Status != status {
		c.logger.Debug("Order not at requested status", zap.String("order_id", event.OrderID), zap.String("status", event.Status))
		return nil
	}

	if changed {
		c.logger.Info("📥 Order status updated", zap.String("order_id", event.OrderID), zap.String("status", event.Status))
	} else {
		c.logger.Debug("Order status unchanged, forwarding snapshot again", zap.String("order_id", event.OrderID), zap.String("status", event.Status))
	}
	return c.snapshots.PublishOrderSnapshot(ctx, order)
}
