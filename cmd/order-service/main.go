package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/app"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/client"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/consumer"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/order"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/publisher"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/saga"
)

// sagas still unfinished this long after they started are treated as abandoned
const recoverAfter = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, discovery.OrderService, 8082)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("❌ Order service stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *app.Runtime) error {
	cfg, logger := rt.Config, rt.Logger

	database, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	transport, err := messaging.NewTransport(cfg, rt.Telemetry.TracerProvider, logger)
	if err != nil {
		return err
	}
	defer transport.Close()
	bus := messaging.NewBus(transport, logger)
	orderPublisher := publisher.NewOrderPublisher(bus)

	resolver := rt.Resolver()
	orders := order.NewService(
		db.NewOrderRepository(database),
		orderPublisher,
		client.NewProductClient(resolver, cfg.UpstreamTimeout, logger),
		logger,
	)
	orchestrator := saga.NewOrchestrator(
		orders,
		client.NewPaymentClient(resolver, cfg.UpstreamTimeout, logger),
		client.NewInventoryClient(resolver, cfg.UpstreamTimeout, logger),
		db.NewSagaLogRepository(database),
		logger,
	)

	if cfg.SagaRecoverOnStart {
		recovered, err := orchestrator.Recover(ctx, recoverAfter)
		if err != nil {
			logger.Warn("⚠️ Saga recovery incomplete", zap.Error(err))
		} else if recovered > 0 {
			logger.Info("♻️ Recovered abandoned sagas", zap.Int("count", recovered))
		}
	}

	router := handlers.NewRouter(cfg.ServiceName, logger, handlers.NewOrderHandler(orchestrator, orders, logger))
	statusConsumer := consumer.NewOrderStatusConsumer(orders, orderPublisher, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Serve(ctx, router) })
	g.Go(func() error {
		return statusConsumer.Run(ctx, bus, cfg.ConsumerGroup, messaging.RetryPolicyFrom(cfg))
	})
	return g.Wait()
}
