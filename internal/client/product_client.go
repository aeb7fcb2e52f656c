package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type ProductClient struct {
	baseClient
}

func NewProductClient(resolver Resolver, timeout time.Duration, logger *zap.Logger) *ProductClient {
	return &ProductClient{baseClient: newBaseClient(discovery.ProductService, resolver, timeout, logger)}
}

// GetProduct fetches a product from Product Service
func (c *ProductClient) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", productID), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
