package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	refreshInterval    = 10 * time.Second
	healthCheckTimeout = 2 * time.Second
)

type Resolver interface {
	ServiceURL(ctx context.Context, name string) (string, error)
	Registered(ctx context.Context) (map[string][]string, error)
}

// Gateway keeps one reverse proxy per backend and re-resolves them periodically.
type Gateway struct {
	resolver Resolver
	backends []string
	logger   *zap.Logger
	checker  *http.Client

	mu       sync.RWMutex
	proxies  map[string]*httputil.ReverseProxy
	services map[string]string
}

func NewGateway(resolver Resolver, backends []string, logger *zap.Logger) *Gateway {
	return &Gateway{
		resolver: resolver,
		backends: backends,
		logger:   logger,
		checker:  &http.Client{Timeout: healthCheckTimeout},
		proxies:  make(map[string]*httputil.ReverseProxy),
		services: make(map[string]string),
	}
}

// Discover resolves every backend once. Unresolvable backends keep their previous route.
func (g *Gateway) Discover(ctx context.Context) {
	for _, name := range g.backends {
		target, err := g.resolver.ServiceURL(ctx, name)
		if err != nil {
			g.logger.Warn("⚠️ Service not resolved", zap.String("service", name), zap.Error(err))
			continue
		}
		g.updateProxy(name, target)
	}
}

// Watch re-runs Discover until ctx ends.
func (g *Gateway) Watch(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Discover(ctx)
		}
	}
}

func (g *Gateway) updateProxy(name, serviceURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.services[name] == serviceURL {
		return
	}

	target, err := url.Parse(serviceURL)
	if err != nil {
		g.logger.Error("❌ Invalid service URL", zap.String("service", name), zap.String("url", serviceURL), zap.Error(err))
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Error("❌ Proxy error", zap.String("service", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"status":"error","message":"service unavailable","category":"UPSTREAM_UNAVAILABLE"}`)
	}

	g.proxies[name] = proxy
	g.services[name] = serviceURL
	g.logger.Info("✅ Updated route", zap.String("service", name), zap.String("url", serviceURL))
}

// Proxy forwards the request to the named backend.
func (g *Gateway) Proxy(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.mu.RLock()
		proxy := g.proxies[name]
		g.mu.RUnlock()
		if proxy == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "error",
				"message":  name + " unavailable",
				"category": "UPSTREAM_UNAVAILABLE",
			})
			return
		}
		g.logger.Debug("🔀 Routing", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path), zap.String("service", name))
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

// HealthCheck queries every known backend concurrently.
func (g *Gateway) HealthCheck(c *gin.Context) {
	g.mu.RLock()
	services := make(map[string]string, len(g.services))
	for name, u := range g.services {
		services[name] = u
	}
	g.mu.RUnlock()

	var mu sync.Mutex
	statuses := make(map[string]string, len(services))
	eg, ctx := errgroup.WithContext(c.Request.Context())
	for name, base := range services {
		name, base := name, base
		eg.Go(func() error {
			status := "healthy"
			if !g.healthy(ctx, base) {
				status = "unhealthy"
			}
			mu.Lock()
			statuses[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	overall := "healthy"
	for _, s := range statuses {
		if s != "healthy" {
			overall = "degraded"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   overall,
		"service":  "api-gateway",
		"services": statuses,
	})
}

func (g *Gateway) healthy(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := g.checker.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListServices shows the active routes next to what the registry currently knows.
func (g *Gateway) ListServices(c *gin.Context) {
	g.mu.RLock()
	routes := make(map[string]string, len(g.services))
	for name, u := range g.services {
		routes[name] = u
	}
	g.mu.RUnlock()

	body := gin.H{"services": routes}
	registered, err := g.resolver.Registered(c.Request.Context())
	if err != nil {
		g.logger.Warn("⚠️ Registry listing failed", zap.Error(err))
	} else {
		body["registered"] = registered
	}
	c.JSON(http.StatusOK, body)
}

// Routes maps path prefixes to the backend serving them.
var Routes = map[string][]string{
	"product-service":   {"/products", "/products/*path"},
	"order-service":     {"/create-saga-order", "/order/*path"},
	"inventory-service": {"/inventory-item/*path", "/sale-order/*path"},
	"payment-service":   {"/payment/*path", "/webhook"},
}

// Register mounts the gateway's own endpoints and every proxied route.
func (g *Gateway) Register(r gin.IRouter) {
	r.GET("/health", g.HealthCheck)
	r.GET("/services", g.ListServices)
	for name, paths := range Routes {
		for _, p := range paths {
			r.Any(p, g.Proxy(name))
		}
	}
}
