package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/app"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/cache"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/catalog"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/handlers"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/lock"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/publisher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, discovery.ProductService, 8081)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt); err != nil {
		rt.Logger.Error("❌ Product service stopped", zap.Error(err))
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

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	transport, err := messaging.NewTransport(cfg, rt.Telemetry.TracerProvider, logger)
	if err != nil {
		return err
	}
	defer transport.Close()
	bus := messaging.NewBus(transport, logger)

	products := db.NewCachedProductRepository(
		db.NewProductRepository(database),
		cache.NewRedisCache(redisClient, cfg.CacheTTL),
		logger,
	)
	locks := lock.NewManager(redisClient, cfg.LockKeyPrefix, logger)
	svc := catalog.NewService(products, locks, publisher.NewProductPublisher(bus), cfg.LockWaitTime, cfg.LockLeaseTime, logger)

	router := handlers.NewRouter(cfg.ServiceName, logger, handlers.NewProductHandler(svc, logger))
	return rt.Serve(ctx, router)
}
