package consumer

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/inventory"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type OrderMirror interface {
	Mirror(ctx context.Context, order models.Order) error
}

type StockInitializer interface {
	Initialize(ctx context.Context, productID int64, initialQty int, referenceID string) (*models.InventoryItem, error)
}

// InventoryConsumer keeps inventory-service in step with orders and the product catalog.
type InventoryConsumer struct {
	sales  OrderMirror
	ledger StockInitializer
	logger *zap.Logger
}

func NewInventoryConsumer(sales OrderMirror, ledger StockInitializer, logger *zap.Logger) *InventoryConsumer {
	return &InventoryConsumer{sales: sales, ledger: ledger, logger: logger}
}

func (c *InventoryConsumer) Run(ctx context.Context, sub Subscriber, group string, policy messaging.RetryPolicy) error {
	return run(ctx, sub, group, policy, c.logger,
		route{topic: messaging.TopicUpdateInventory, handler: c.HandleOrderSnapshot},
		route{topic: messaging.TopicProductSync, handler: c.HandleProductEvent},
	)
}

// HandleOrderSnapshot mirrors an order published on update-inventory-topic.
func (c *InventoryConsumer) HandleOrderSnapshot(ctx context.Context, msg messaging.Message) error {
	var order models.Order
	if err := decodeJSON(msg, &order); err != nil {
		return err
	}

	c.logger.Info("📥 Received order snapshot",
		zap.String("order_id", order.ID.String()),
		zap.Stringer("status", order.Status),
	)
	return c.sales.Mirror(ctx, order)
}

// HandleProductEvent creates an empty ledger row for every new product.
func (c *InventoryConsumer) HandleProductEvent(ctx context.Context, msg messaging.Message) error {
	event, err := models.DecodeProductEvent(msg.Value)
	if err != nil {
		return messaging.Permanent(err)
	}

	switch e := event.(type) {
	case models.ProductCreated:
		_, err := c.ledger.Initialize(ctx, e.ID, 0, strconv.FormatInt(e.ID, 10))
		if errors.Is(err, inventory.ErrAlreadyExists) {
			c.logger.Debug("Inventory already initialized", zap.Int64("product_id", e.ID))
			return nil
		}
		return err
	case models.ProductUpdated:
		c.logger.Info("Product updated", zap.Int64("product_id", e.ID), zap.String("name", e.Name))
	case models.ProductDeleted:
		c.logger.Info("Product deleted, inventory row kept", zap.Int64("product_id", e.ID))
	}
	return nil
}
