package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/hamba/avro/v2"
)

// ProductEventSchema is the Avro contract of product-sync-events.
const ProductEventSchema = `{
  "type": "record",
  "name": "ProductEvent",
  "namespace": "shopsaga.avro",
  "fields": [
    {"name": "eventType", "type": {"type": "enum", "name": "ProductEventType", "symbols": ["CREATED", "UPDATED", "DELETED"]}},
    {"name": "id", "type": "long"},
    {"name": "name", "type": "string"},
    {"name": "status", "type": {"type": "enum", "name": "ProductStatus", "symbols": ["ACTIVE", "INACTIVE"]}},
    {"name": "price", "type": {"type": "bytes", "logicalType": "decimal", "precision": 10, "scale": 2}},
    {"name": "attributes", "type": "string"},
    {"name": "createdAt", "type": {"type": "long", "logicalType": "timestamp-millis"}},
    {"name": "updatedAt", "type": {"type": "long", "logicalType": "timestamp-millis"}},
    {"name": "timestamp", "type": {"type": "long", "logicalType": "timestamp-millis"}}
  ]
}`

var productEventSchema = avro.MustParse(ProductEventSchema)

// ProductEvent is one of ProductCreated, ProductUpdated or ProductDeleted.
type ProductEvent interface {
	isProductEvent()
}

type ProductCreated struct {
	Product
	Timestamp time.Time
}

type ProductUpdated struct {
	Product
	Timestamp time.Time
}

// ProductDeleted carries the product as it was just before deletion.
type ProductDeleted struct {
	Product
	Timestamp time.Time
}

func (ProductCreated) isProductEvent() {}
func (ProductUpdated) isProductEvent() {}
func (ProductDeleted) isProductEvent() {}

type avroProductEvent struct {
	EventType  string    `avro:"eventType"`
	ID         int64     `avro:"id"`
	Name       string    `avro:"name"`
	Status     string    `avro:"status"`
	Price      *big.Rat  `avro:"price"`
	Attributes string    `avro:"attributes"`
	CreatedAt  time.Time `avro:"createdAt"`
	UpdatedAt  time.Time `avro:"updatedAt"`
	Timestamp  time.Time `avro:"timestamp"`
}

// EncodeProductEvent serializes e with ProductEventSchema.
func EncodeProductEvent(e ProductEvent) ([]byte, error) {
	var (
		eventType string
		p         Product
		ts        time.Time
	)
	switch ev := e.(type) {
	case ProductCreated:
		eventType, p, ts = "CREATED", ev.Product, ev.Timestamp
	case ProductUpdated:
		eventType, p, ts = "UPDATED", ev.Product, ev.Timestamp
	case ProductDeleted:
		eventType, p, ts = "DELETED", ev.Product, ev.Timestamp
	default:
		return nil, fmt.Errorf("unsupported product event %T", e)
	}

	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return nil, fmt.Errorf("product event serialization failed: %w", err)
	}
	price, ok := new(big.Rat).SetString(strconv.FormatFloat(p.Price, 'f', 2, 64))
	if !ok {
		return nil, fmt.Errorf("product event serialization failed: bad price %v", p.Price)
	}
	status := p.Status
	if status == "" {
		status = ProductActive
	}

	data, err := avro.Marshal(productEventSchema, avroProductEvent{
		EventType:  eventType,
		ID:         p.ID,
		Name:       p.Name,
		Status:     string(status),
		Price:      price,
		Attributes: string(attrs),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Timestamp:  ts,
	})
	if err != nil {
		return nil, fmt.Errorf("product event serialization failed: %w", err)
	}
	return data, nil
}

// DecodeProductEvent parses a product-sync-events payload into its variant.
func DecodeProductEvent(data []byte) (ProductEvent, error) {
	var raw avroProductEvent
	if err := avro.Unmarshal(productEventSchema, data, &raw); err != nil {
		return nil, fmt.Errorf("product event deserialization failed: %w", err)
	}

	p := Product{
		ID:        raw.ID,
		Name:      raw.Name,
		Status:    ProductStatus(raw.Status),
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if raw.Price != nil {
		p.Price, _ = raw.Price.Float64()
	}
	if raw.Attributes != "" && raw.Attributes != "null" {
		if err := json.Unmarshal([]byte(raw.Attributes), &p.Attributes); err != nil {
			return nil, fmt.Errorf("product event deserialization failed: attributes: %w", err)
		}
	}

	switch raw.EventType {
	case "CREATED":
		return ProductCreated{Product: p, Timestamp: raw.Timestamp}, nil
	case "UPDATED":
		return ProductUpdated{Product: p, Timestamp: raw.Timestamp}, nil
	case "DELETED":
		return ProductDeleted{Product: p, Timestamp: raw.Timestamp}, nil
	default:
		return nil, fmt.Errorf("product event deserialization failed: unknown event type %q", raw.EventType)
	}
}
