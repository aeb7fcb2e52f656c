package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/inventory"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// InventoryClient calls inventory-service. Remote ledger errors come back as the
// inventory package's sentinels, so errors.Is works across the wire.
type InventoryClient struct {
	baseClient
}

func NewInventoryClient(resolver Resolver, timeout time.Duration, logger *zap.Logger) *InventoryClient {
	return &InventoryClient{baseClient: newBaseClient(discovery.InventoryService, resolver, timeout, logger,
		inventory.ErrItemNotFound,
		inventory.ErrAlreadyExists,
		inventory.ErrConcurrentModification,
		inventory.ErrInsufficientStock,
		inventory.ErrInsufficientReservation,
		inventory.ErrSaleOrderNotFound,
	)}
}

func (c *InventoryClient) CreateSaleOrder(ctx context.Context, req models.CreateSaleOrderRequest) (*models.SaleOrder, error) {
	var so models.SaleOrder
	if err := c.do(ctx, http.MethodPost, "/sale-order/create", req, &so); err != nil {
		return nil, err
	}
	return &so, nil
}

func (c *InventoryClient) CancelSaleOrder(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodPatch, "/sale-order/cancel/"+id.String(), nil, nil)
}

func (c *InventoryClient) GetItem(ctx context.Context, productID int64) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/inventory-item/%d", productID), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *InventoryClient) IsAvailable(ctx context.Context, productID int64, quantity int) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	path := fmt.Sprintf("/inventory-item/check?productId=%d&quantity=%d", productID, quantity)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}
