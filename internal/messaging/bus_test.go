package messaging_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
)

var fastRetry = messaging.RetryPolicy{
	Attempts:        4,
	InitialInterval: time.Millisecond,
	Multiplier:      1.5,
	MaxInterval:     5 * time.Millisecond,
}

// subscribe starts bus.Subscribe in the background and waits until it is registered.
func subscribe(t *testing.T, bus *messaging.Bus, mem *messaging.MemoryTransport, topic string, h messaging.Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Subscribe(ctx, topic, "test", h, fastRetry)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return mem.Subscribers(topic) > 0 }, time.Second, time.Millisecond)
}

func TestBus_DeliversAndRetriesTransientFailures(t *testing.T) {
	mem := messaging.NewMemoryTransport(zap.NewNop())
	bus := messaging.NewBus(mem, zap.NewNop())

	var calls int
	subscribe(t, bus, mem, "orders", func(_ context.Context, msg messaging.Message) error {
		calls++
		if calls < 3 {
			return errors.New("database connection refused")
		}
		assert.Equal(t, "o-1", string(msg.Key))
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), "orders", "o-1", []byte(`{}`)))

	assert.Equal(t, 3, calls)
	assert.Empty(t, mem.Published(messaging.DeadLetterTopic("orders")))
}

func TestBus_ExhaustedRetriesGoToDeadLetterTopic(t *testing.T) {
	mem := messaging.NewMemoryTransport(zap.NewNop())
	bus := messaging.NewBus(mem, zap.NewNop())

	var mu sync.Mutex
	var processed []string
	subscribe(t, bus, mem, "orders", func(_ context.Context, msg messaging.Message) error {
		if string(msg.Key) == "poison" {
			return fmt.Errorf("apply order: %w", errors.New("stock validation failed"))
		}
		mu.Lock()
		processed = append(processed, string(msg.Key))
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, "orders", "a", []byte("1")))
	require.NoError(t, bus.Publish(ctx, "orders", "poison", []byte("2")))
	require.NoError(t, bus.Publish(ctx, "orders", "b", []byte("3")))

	// the poison message does not block the ones behind it
	assert.Equal(t, []string{"a", "b"}, processed)

	dead := mem.Published("orders.DLT")
	require.Len(t, dead, 1)
	dl := dead[0]
	assert.Equal(t, "poison", string(dl.Key))
	assert.Equal(t, []byte("2"), dl.Value)
	assert.Equal(t, "apply order: stock validation failed", dl.Headers[messaging.HeaderExceptionMessage])
	assert.Equal(t, "orders", dl.Headers[messaging.HeaderOriginalTopic])
	assert.Equal(t, "0", dl.Headers[messaging.HeaderOriginalPartition])
	assert.Equal(t, "1", dl.Headers[messaging.HeaderOriginalOffset])
	assert.True(t, strings.Contains(dl.Headers[messaging.HeaderExceptionStacktrace], "caused by"))
	assert.Equal(t, messaging.ErrorValidation, messaging.ClassifyError(dl.Headers[messaging.HeaderExceptionMessage]))
}

func TestBus_PermanentErrorSkipsRetries(t *testing.T) {
	mem := messaging.NewMemoryTransport(zap.NewNop())
	bus := messaging.NewBus(mem, zap.NewNop())

	calls := 0
	subscribe(t, bus, mem, "products", func(context.Context, messaging.Message) error {
		calls++
		return messaging.Permanent(errors.New("deserialization failed"))
	})

	require.NoError(t, bus.Publish(context.Background(), "products", "p", []byte{0xff}))

	assert.Equal(t, 1, calls)
	dead := mem.Published("products.DLT")
	require.Len(t, dead, 1)
	assert.Equal(t, "deserialization failed", dead[0].Headers[messaging.HeaderExceptionMessage])
}

func TestBus_PropagatesTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	mem := messaging.NewMemoryTransport(zap.NewNop())
	bus := messaging.NewBus(mem, zap.NewNop())

	var got trace.TraceID
	subscribe(t, bus, mem, "traced", func(ctx context.Context, _ messaging.Message) error {
		got = trace.SpanContextFromContext(ctx).TraceID()
		return nil
	})

	ctx, span := tp.Tracer("test").Start(context.Background(), "root")
	require.NoError(t, bus.Publish(ctx, "traced", "k", nil))
	span.End()

	assert.Equal(t, span.SpanContext().TraceID(), got)
	assert.NotEmpty(t, mem.Published("traced")[0].Headers["traceparent"])
}

func TestDeadLetterHandler_NeverFails(t *testing.T) {
	h := messaging.NewDeadLetterHandler(zap.NewNop())
	err := h.Handle(context.Background(), messaging.Message{
		Topic:   "orders.DLT",
		Headers: map[string]string{messaging.HeaderExceptionMessage: "boom"},
	})
	assert.NoError(t, err)
}
