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
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/inventory"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, discovery.InventoryService, 8084)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("❌ Inventory service stopped", zap.Error(err))
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

	ledger := inventory.NewLedger(db.NewInventoryRepository(database), logger)
	sales := inventory.NewSaleOrderService(ledger, db.NewSaleOrderRepository(database), logger)

	router := handlers.NewRouter(cfg.ServiceName, logger, handlers.NewInventoryHandler(ledger, sales, logger))
	inventoryConsumer := consumer.NewInventoryConsumer(sales, ledger, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Serve(ctx, router) })
	g.Go(func() error {
		return inventoryConsumer.Run(ctx, bus, cfg.ConsumerGroup, messaging.RetryPolicyFrom(cfg))
	})
	return g.Wait()
}
