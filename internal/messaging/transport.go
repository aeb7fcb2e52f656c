package messaging

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/config"
)

// NewTransport builds the backend named by cfg.Broker.
func NewTransport(cfg *config.Config, tp trace.TracerProvider, logger *zap.Logger) (Transport, error) {
	switch cfg.Broker {
	case "kafka", "":
		return NewKafka(cfg.KafkaBrokers, cfg.ServiceName, tp, logger)
	case "rabbitmq":
		return NewRabbitMQ(cfg.RabbitHost, cfg.RabbitPort, cfg.RabbitUser, cfg.RabbitPass, logger)
	case "memory":
		logger.Warn("⚠️ Using in-memory broker; messages do not leave this process")
		return NewMemoryTransport(logger), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}
}

// RetryPolicyFrom reads the consumer retry settings.
func RetryPolicyFrom(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		Attempts:        cfg.RetryAttempts,
		InitialInterval: cfg.RetryDelay,
		Multiplier:      cfg.RetryMultiplier,
		MaxInterval:     cfg.RetryMaxDelay,
	}
}
