package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryTransport delivers messages synchronously inside the process.
// It backs BROKER=memory for local runs and is what the package tests drive.
type MemoryTransport struct {
	logger *zap.Logger

	mu        sync.Mutex
	handlers  map[string]map[string]Handler // topic -> group -> handler
	published map[string][]Message
	offsets   map[string]int64
}

func NewMemoryTransport(logger *zap.Logger) *MemoryTransport {
	return &MemoryTransport{
		logger:    logger,
		handlers:  make(map[string]map[string]Handler),
		published: make(map[string][]Message),
		offsets:   make(map[string]int64),
	}
}

// Publish records msg and hands it to one handler per subscribed group.
func (m *MemoryTransport) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	msg.Offset = m.offsets[msg.Topic]
	m.offsets[msg.Topic]++
	m.published[msg.Topic] = append(m.published[msg.Topic], msg)
	handlers := make([]Handler, 0, len(m.handlers[msg.Topic]))
	for _, h := range m.handlers[msg.Topic] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			m.logger.Error("❌ In-memory delivery failed", zap.String("topic", msg.Topic), zap.Error(err))
		}
	}
	return nil
}

func (m *MemoryTransport) Subscribe(ctx context.Context, topic, group string, handler Handler) error {
	m.mu.Lock()
	if m.handlers[topic] == nil {
		m.handlers[topic] = make(map[string]Handler)
	}
	m.handlers[topic][group] = handler
	m.mu.Unlock()

	<-ctx.Done()

	m.mu.Lock()
	delete(m.handlers[topic], group)
	m.mu.Unlock()
	return nil
}

// Subscribers returns how many groups currently listen on topic.
func (m *MemoryTransport) Subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers[topic])
}

// Published returns a copy of everything published to topic so far.
func (m *MemoryTransport) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[topic]...)
}

func (m *MemoryTransport) Close() error { return nil }
