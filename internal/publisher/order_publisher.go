package publisher

import (
	"context"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// JSONPublisher is the part of messaging.Bus the publishers need.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type OrderPublisher struct {
	bus JSONPublisher
}

func NewOrderPublisher(bus JSONPublisher) *OrderPublisher {
	return &OrderPublisher{bus: bus}
}

// PublishCheckout announces that the customer checked the order out.
func (p *OrderPublisher) PublishCheckout(ctx context.Context, order *models.Order) error {
	event := models.CheckoutEvent{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
	}
	return p.bus.PublishJSON(ctx, messaging.TopicCheckoutOrder, order.ID.String(), event)
}

// PublishOrderSnapshot sends the full order so inventory can mirror its status.
func (p *OrderPublisher) PublishOrderSnapshot(ctx context.Context, order *models.Order) error {
	return p.bus.PublishJSON(ctx, messaging.TopicUpdateInventory, order.ID.String(), order)
}
