package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/app"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, discovery.APIGateway, 8080)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer rt.Close()

	gateway := NewGateway(rt.Resolver(), []string{
		discovery.ProductService,
		discovery.OrderService,
		discovery.InventoryService,
		discovery.PaymentService,
	}, rt.Logger)
	gateway.Discover(ctx)
	go gateway.Watch(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	gateway.Register(router)

	if err := rt.Serve(ctx, router); err != nil {
		rt.Logger.Error("❌ API gateway stopped", zap.Error(err))
		os.Exit(1)
	}
}
