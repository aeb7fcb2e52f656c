package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/config"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/db"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Runtime is what every binary sets up before wiring its own components.
type Runtime struct {
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *observability.Telemetry
	Consul    *discovery.ConsulClient
}

// Bootstrap loads config, starts telemetry and the logger and connects to Consul.
// A missing Consul is not fatal; the resolver then uses the configured URLs.
func Bootstrap(ctx context.Context, serviceName string, defaultPort int) (*Runtime, error) {
	cfg := config.LoadFor(serviceName, defaultPort)

	telemetry, err := observability.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint, cfg.OtelAuthHeader)
	if err != nil && telemetry == nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	logger := observability.NewLogger(cfg.ServiceName, cfg.LogLevel, telemetry.Exporting)
	if err != nil {
		logger.Warn("⚠️ Telemetry partially configured", zap.Error(err))
	}

	rt := &Runtime{Config: cfg, Logger: logger, Telemetry: telemetry}

	consul, err := discovery.NewConsulClient(cfg.ConsulHost, cfg.ConsulPort, logger)
	if err != nil {
		logger.Warn("⚠️ Consul unavailable, using configured service URLs", zap.Error(err))
	} else {
		rt.Consul = consul
	}
	return rt, nil
}

// Resolver resolves peer services through Consul with the configured URLs as fallback.
func (rt *Runtime) Resolver() *discovery.Resolver {
	return discovery.NewResolver(rt.Consul, map[string]string{
		discovery.OrderService:     rt.Config.OrderServiceURL,
		discovery.InventoryService: rt.Config.InventoryServiceURL,
		discovery.PaymentService:   rt.Config.PaymentServiceURL,
		discovery.ProductService:   rt.Config.ProductServiceURL,
	}, rt.Logger)
}

// Database connects to Postgres and applies the embedded migrations.
func (rt *Runtime) Database(ctx context.Context) (*db.PostgresDB, error) {
	cfg := rt.Config
	database, err := db.NewPostgresDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, rt.Logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Serve runs handler on the configured port until ctx ends, registered in Consul meanwhile.
func (rt *Runtime) Serve(ctx context.Context, handler http.Handler) error {
	cfg := rt.Config
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serviceID := fmt.Sprintf("%s-%d", cfg.ServiceName, cfg.ServicePort)
	if rt.Consul != nil {
		if err := rt.Consul.Register(discovery.ServiceConfig{
			Name: cfg.ServiceName,
			ID:   serviceID,
			Port: cfg.ServicePort,
			Tags: []string{"shopsaga"},
		}); err != nil {
			rt.Logger.Warn("⚠️ Consul registration failed", zap.Error(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("🚀 Service starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if rt.Consul != nil {
		if err := rt.Consul.Deregister(serviceID); err != nil {
			rt.Logger.Warn("⚠️ Consul deregistration failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	rt.Logger.Info("🛑 Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// Close flushes telemetry and the logger.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Telemetry.Shutdown(ctx); err != nil {
		rt.Logger.Warn("⚠️ Telemetry shutdown failed", zap.Error(err))
	}
	_ = rt.Logger.Sync()
}
