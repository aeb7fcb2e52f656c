package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const headerMessageKey = "x-message-key"

// RabbitMQ maps every topic to a fanout exchange and every consumer group to a durable
// queue "<topic>.<group>" bound to it.
type RabbitMQ struct {
	conn   *amqp.Connection
	logger *zap.Logger

	// publishing shares one channel; amqp channels are not safe for concurrent use
	mu      sync.Mutex
	channel *amqp.Channel
	known   map[string]bool
}

func NewRabbitMQ(host string, port int, user, password string, logger *zap.Logger) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	logger.Info("✅ Connected to RabbitMQ", zap.String("host", host), zap.Int("port", port))

	return &RabbitMQ{
		conn:    conn,
		logger:  logger,
		channel: channel,
		known:   make(map[string]bool),
	}, nil
}

func declareExchange(ch *amqp.Channel, topic string) error {
	err := ch.ExchangeDeclare(
		topic,    // name
		"fanout", // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", topic, err)
	}
	return nil
}

// DeclareQueue creates the group's queue for topic and binds it. It returns the queue name.
func DeclareQueue(ch *amqp.Channel, topic, group string) (string, error) {
	if err := declareExchange(ch, topic); err != nil {
		return "", err
	}

	name := topic + "." + group
	_, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	if err := ch.QueueBind(name, "", topic, false, nil); err != nil {
		return "", fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return name, nil
}

// Publish sends msg to the topic's exchange.
func (r *RabbitMQ) Publish(ctx context.Context, msg Message) error {
	headers := amqp.Table{headerMessageKey: string(msg.Key)}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.known[msg.Topic] {
		if err := declareExchange(r.channel, msg.Topic); err != nil {
			return err
		}
		r.known[msg.Topic] = true
	}

	err := r.channel.PublishWithContext(ctx,
		msg.Topic, // exchange
		"",        // routing key (ignored by fanout)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/octet-stream",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         msg.Value,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe consumes the group's queue on its own channel with manual acks.
// A handler error nacks the delivery back onto the queue.
func (r *RabbitMQ) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	queue, err := DeclareQueue(ch, topic, group)
	if err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue, // queue name
		"",    // consumer tag
		false, // auto-ack (false = manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}

	r.logger.Info("👂 Listening on queue", zap.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}

			msg := fromDelivery(topic, d)
			if err := handler(ctx, msg); err != nil {
				r.logger.Error("❌ Message not accepted, requeueing", zap.String("queue", queue), zap.Error(err))
				if nackErr := d.Nack(false, true); nackErr != nil {
					r.logger.Error("❌ Failed to nack", zap.Error(nackErr))
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				r.logger.Error("❌ Failed to ack", zap.String("queue", queue), zap.Error(err))
			}
		}
	}
}

func fromDelivery(topic string, d amqp.Delivery) Message {
	headers := make(map[string]string, len(d.Headers))
	var key []byte
	for k, v := range d.Headers {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == headerMessageKey {
			key = []byte(s)
			continue
		}
		headers[k] = s
	}
	return Message{
		Topic:   topic,
		Key:     key,
		Value:   d.Body,
		Headers: headers,
		Offset:  int64(d.DeliveryTag),
	}
}

// Close closes the connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
