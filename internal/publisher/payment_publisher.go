package publisher

import (
	"context"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type PaymentPublisher struct {
	bus JSONPublisher
}

func NewPaymentPublisher(bus JSONPublisher) *PaymentPublisher {
	return &PaymentPublisher{bus: bus}
}

// PublishStatusUpdate asks order-service to move orderID to status.
func (p *PaymentPublisher) PublishStatusUpdate(ctx context.Context, orderID string, status models.OrderStatus) error {
	event := models.StatusUpdateEvent{
		OrderID: orderID,
		Status:  status.String(),
	}
	return p.bus.PublishJSON(ctx, messaging.TopicUpdateOrderStatus, orderID, event)
}
