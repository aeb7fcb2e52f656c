package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/app"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/consumer"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/payment"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/publisher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, discovery.PaymentService, 8083)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("❌ Payment service stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *app.Runtime) error {
	cfg, logger := rt.Config, rt.Logger
	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		logger.Warn("⚠️ STRIPE_SECRET_KEY or STRIPE_WEBHOOK_SECRET is empty; provider calls and webhooks will fail")
	}

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

	transactions := db.NewTransactionRepository(database)
	payments := payment.NewService(payment.NewStripeProvider(cfg.StripeSecretKey), transactions, logger)
	webhooks := payment.NewWebhookService(cfg.StripeWebhookSecret, transactions, publisher.NewPaymentPublisher(bus), logger)

	router := handlers.NewRouter(cfg.ServiceName, logger, handlers.NewPaymentHandler(payments, webhooks, logger))
	checkoutConsumer := consumer.NewCheckoutConsumer(payments, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Serve(ctx, router) })
	g.Go(func() error {
		return checkoutConsumer.Run(ctx, bus, cfg.ConsumerGroup, messaging.RetryPolicyFrom(cfg))
	})
	return g.Wait()
}
