package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Topics shared by the services.
const (
	TopicCheckoutOrder     = "checkout-order-topic"
	TopicUpdateOrderStatus = "update-order-status-topic"
	TopicUpdateInventory   = "update-inventory-topic"
	TopicProductSync       = "product-sync-events"
)

// Message is a broker-neutral record. Partition and Offset are only set on consumed messages.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
}

// Handler processes one message. Returning nil acknowledges it.
type Handler func(ctx context.Context, msg Message) error

// Transport is a broker backend.
type Transport interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe blocks until ctx ends, delivering messages of topic to handler.
	// A message whose handler fails is redelivered.
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
	Close() error
}

// Bus adds trace propagation, retries and dead-lettering on top of a Transport.
type Bus struct {
	transport Transport
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewBus(transport Transport, logger *zap.Logger) *Bus {
	return &Bus{
		transport: transport,
		logger:    logger,
		tracer:    otel.Tracer("shopsaga/messaging"),
	}
}

// Publish sends payload to topic. The current trace context travels in the headers.
func (b *Bus) Publish(ctx context.Context, topic, key string, payload []byte) error {
	ctx, span := b.tracer.Start(ctx, "publish "+topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingDestinationNameKey.String(topic),
			attribute.String("messaging.message.key", key),
		),
	)
	defer span.End()

	headers := map[string]string{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	err := b.transport.Publish(ctx, Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("❌ Failed to publish message", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	b.logger.Info("📤 Published message", zap.String("topic", topic), zap.String("key", key))
	return nil
}

// PublishJSON marshals v and publishes it.
func (b *Bus) PublishJSON(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return b.Publish(ctx, topic, key, payload)
}

// Subscribe consumes topic as group until ctx ends. Each message is retried per policy;
// once retries are exhausted it is copied to the topic's dead-letter topic and acknowledged.
func (b *Bus) Subscribe(ctx context.Context, topic, group string, handler Handler, policy RetryPolicy) error {
	b.logger.Info("👂 Subscribing", zap.String("topic", topic), zap.String("group", group))

	return b.transport.Subscribe(ctx, topic, group, func(ctx context.Context, msg Message) error {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
		ctx, span := b.tracer.Start(ctx, "process "+topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.consumer.group.name", group),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)
		defer span.End()

		attempt := 0
		err := policy.Do(ctx, func() error {
			attempt++
			err := handler(ctx, msg)
			if err != nil {
				b.logger.Warn("⚠️ Handler failed",
					zap.String("topic", topic),
					zap.ByteString("key", msg.Key),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			return err
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// shutting down; leave the message for redelivery
			return err
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return b.deadLetter(ctx, msg, err)
	})
}

// SubscribeDeadLetters consumes the dead-letter topic of topic with h. Dead letters are never retried.
func (b *Bus) SubscribeDeadLetters(ctx context.Context, topic, group string, h *DeadLetterHandler) error {
	dlt := DeadLetterTopic(topic)
	b.logger.Info("👂 Subscribing to dead letters", zap.String("topic", dlt), zap.String("group", group))
	return b.transport.Subscribe(ctx, dlt, group, h.Handle)
}

func (b *Bus) deadLetter(ctx context.Context, msg Message, cause error) error {
	dl := deadLetterMessage(msg, cause)
	if err := b.transport.Publish(ctx, dl); err != nil {
		b.logger.Error("❌ Failed to dead-letter message",
			zap.String("topic", msg.Topic),
			zap.String("dlt", dl.Topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to %s: %w", dl.Topic, err)
	}

	b.logger.Error("☠️ Message moved to dead-letter topic",
		zap.String("topic", msg.Topic),
		zap.String("dlt", dl.Topic),
		zap.ByteString("key", msg.Key),
		zap.Int64("offset", msg.Offset),
		zap.Error(cause),
	)
	return nil
}
