package discovery_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
)

func TestResolver_FallsBackWithoutConsul(t *testing.T) {
	r := discovery.NewResolver(nil, map[string]string{
		discovery.PaymentService: "http://payment-service:8083",
		discovery.OrderService:   "",
	}, zap.NewNop())

	url, err := r.ServiceURL(context.Background(), discovery.PaymentService)
	require.NoError(t, err)
	assert.Equal(t, "http://payment-service:8083", url)

	_, err = r.ServiceURL(context.Background(), discovery.OrderService)
	assert.Error(t, err)
	_, err = r.ServiceURL(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestResolver_RegisteredListsConfiguredServices(t *testing.T) {
	r := discovery.NewResolver(nil, map[string]string{
		discovery.ProductService: "http://product-service:8081",
		discovery.OrderService:   "",
	}, zap.NewNop())

	services, err := r.Registered(context.Background())
	require.NoError(t, err)
	assert.Contains(t, services, discovery.ProductService)
	assert.NotContains(t, services, discovery.OrderService)
}
