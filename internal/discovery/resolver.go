package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Resolver turns a service name into a base URL. It asks Consul first and falls back
// to a configured URL when Consul is absent or has no healthy instance.
type Resolver struct {
	consul    *ConsulClient
	fallbacks map[string]string
	logger    *zap.Logger
}

// NewResolver accepts a nil consul, in which case only the fallbacks are used.
func NewResolver(consul *ConsulClient, fallbacks map[string]string, logger *zap.Logger) *Resolver {
	return &Resolver{consul: consul, fallbacks: fallbacks, logger: logger}
}

func (r *Resolver) ServiceURL(ctx context.Context, name string) (string, error) {
	if r.consul != nil {
		url, err := r.consul.GetServiceURL(ctx, name)
		if err == nil {
			return url, nil
		}
		r.logger.Warn("⚠️ Consul lookup failed, using fallback URL", zap.String("service", name), zap.Error(err))
	}

	if url, ok := r.fallbacks[name]; ok && url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no address known for %s", name)
}

// Registered lists the services Consul knows about, or the fallback names without Consul.
func (r *Resolver) Registered(ctx context.Context) (map[string][]string, error) {
	if r.consul != nil {
		return r.consul.GetAllServices(ctx)
	}
	services := make(map[string][]string, len(r.fallbacks))
	for name, url := range r.fallbacks {
		if url != "" {
			services[name] = nil
		}
	}
	return services, nil
}
