package publisher

import (
	"context"
	"strconv"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// RawPublisher publishes pre-encoded payloads.
type RawPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// ProductPublisher writes Avro-encoded product events keyed by product id.
type ProductPublisher struct {
	bus RawPublisher
}

func NewProductPublisher(bus RawPublisher) *ProductPublisher {
	return &ProductPublisher{bus: bus}
}

func (p *ProductPublisher) PublishProductEvent(ctx context.Context, event models.ProductEvent) error {
	payload, err := models.EncodeProductEvent(event)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, messaging.TopicProductSync, strconv.FormatInt(productID(event), 10), payload)
}

func productID(event models.ProductEvent) int64 {
	switch e := event.(type) {
	case models.ProductCreated:
		return e.ID
	case models.ProductUpdated:
		return e.ID
	case models.ProductDeleted:
		return e.ID
	}
	return 0
}
