package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
)

// Subscriber is the part of messaging.Bus the consumers need.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, handler messaging.Handler, policy messaging.RetryPolicy) error
	SubscribeDeadLetters(ctx context.Context, topic, group string, h *messaging.DeadLetterHandler) error
}

type route struct {
	topic   string
	handler messaging.Handler
}

// run subscribes every route plus a dead-letter listener per topic and blocks until ctx ends
// or one subscription fails.
func run(ctx context.Context, sub Subscriber, group string, policy messaging.RetryPolicy, logger *zap.Logger, routes ...route) error {
	g, ctx := errgroup.WithContext(ctx)
	dlt := messaging.NewDeadLetterHandler(logger)

	for _, r := range routes {
		r := r
		g.Go(func() error {
			logger.Info("👂 Listening", zap.String("topic", r.topic), zap.String("group", group))
			return sub.Subscribe(ctx, r.topic, group, r.handler, policy)
		})
		g.Go(func() error {
			return sub.SubscribeDeadLetters(ctx, r.topic, group, dlt)
		})
	}
	return g.Wait()
}

// decodeJSON marks malformed payloads permanent so they skip retries and go straight to the DLT.
func decodeJSON(msg messaging.Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return messaging.Permanent(fmt.Errorf("%s deserialization failed: %w", msg.Topic, err))
	}
	return nil
}
