package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	batchTimeout    = 10 * time.Millisecond
	redeliveryPause = time.Second
)

type kafkaProducer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// Kafka publishes through a traced kafka-go writer and consumes with one reader per subscription.
type Kafka struct {
	brokers []string
	writer  kafkaProducer
	logger  *zap.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafka(brokers []string, serviceName string, tp trace.TracerProvider, logger *zap.Logger) (*Kafka, error) {
	// Topic is left empty so every message names its own.
	baseWriter := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				attribute.String("messaging.kafka.client_id", serviceName),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}

	logger.Info("✅ Kafka producer ready", zap.Strings("brokers", brokers))
	return &Kafka{
		brokers: brokers,
		writer:  writer,
		logger:  logger,
	}, nil
}

func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for key, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(v)})
	}

	return k.writer.WriteMessage(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

// Subscribe commits an offset only after handler accepted the message. A failing message
// is handed to handler again after a pause, which keeps per-partition order.
func (k *Kafka) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	k.mu.Lock()
	k.readers = append(k.readers, reader)
	k.mu.Unlock()
	defer reader.Close()

	k.logger.Info("Kafka consumer started. Waiting for messages...", zap.String("topic", topic), zap.String("group", group))

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				k.logger.Info("Context done, exiting Kafka read loop.", zap.String("topic", topic))
				return nil
			}
			k.logger.Error("❌ Error reading from Kafka", zap.String("topic", topic), zap.Error(err))
			continue
		}

		msg := fromKafka(km)
		for {
			err := handler(ctx, msg)
			if err == nil {
				break
			}
			k.logger.Error("❌ Message not accepted, redelivering",
				zap.String("topic", topic),
				zap.Int("partition", km.Partition),
				zap.Int64("offset", km.Offset),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(redeliveryPause):
			}
		}

		if err := reader.CommitMessages(ctx, km); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.logger.Error("❌ Failed to commit offset", zap.String("topic", topic), zap.Int64("offset", km.Offset), zap.Error(err))
		}
	}
}

func fromKafka(km kafka.Message) Message {
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     km.Topic,
		Key:       km.Key,
		Value:     km.Value,
		Headers:   headers,
		Partition: km.Partition,
		Offset:    km.Offset,
	}
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	readers := k.readers
	k.readers = nil
	k.mu.Unlock()

	var err error
	for _, r := range readers {
		err = errors.Join(err, r.Close())
	}
	return errors.Join(err, k.writer.Close())
}
