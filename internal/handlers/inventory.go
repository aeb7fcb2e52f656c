package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type InventoryLedger interface {
	Get(ctx context.Context, productID int64) (*models.InventoryItem, error)
	IsAvailable(ctx context.Context, productID int64, qty int) (bool, error)
	Adjust(ctx context.Context, productID int64, qty int, isAddition bool, referenceID string) (*models.InventoryItem, error)
}

type SaleOrders interface {
	Create(ctx context.Context, req models.CreateSaleOrderRequest) (*models.SaleOrder, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.SaleOrder, error)
}

type InventoryHandler struct {
	ledger InventoryLedger
	sales  SaleOrders
	logger *zap.Logger
}

func NewInventoryHandler(ledger InventoryLedger, sales SaleOrders, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, sales: sales, logger: logger}
}

func (h *InventoryHandler) Register(r gin.IRouter) {
	r.GET("/inventory-item/check", h.CheckAvailability)
	r.POST("/inventory-item/adjust", h.AdjustStock)
	r.GET("/inventory-item/:productId", h.GetItem)
	r.POST("/sale-order/create", h.CreateSaleOrder)
	r.PATCH("/sale-order/cancel/:id", h.CancelSaleOrder)
}

func (h *InventoryHandler) GetItem(c *gin.Context) {
	productID, ok := int64Param(c, "productId")
	if !ok {
		badRequest(c, h.logger, "invalid product ID")
		return
	}

	item, err := h.ledger.Get(c.Request.Context(), productID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "inventory item found", item)
}

// CheckAvailability answers GET /inventory-item/check?productId=&quantity=.
func (h *InventoryHandler) CheckAvailability(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Query("productId"), 10, 64)
	if err != nil {
		badRequest(c, h.logger, "invalid productId")
		return
	}
	quantity, err := strconv.Atoi(c.Query("quantity"))
	if err != nil || quantity <= 0 {
		badRequest(c, h.logger, "quantity must be a positive integer")
		return
	}

	available, err := h.ledger.IsAvailable(c.Request.Context(), productID, quantity)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "availability checked", gin.H{"available": available})
}

func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req models.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}
	if req.ReferenceID == "" {
		req.ReferenceID = "manual-adjustment"
	}

	item, err := h.ledger.Adjust(c.Request.Context(), req.ProductID, req.Quantity, req.IsAddition, req.ReferenceID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "stock adjusted", item)
}

func (h *InventoryHandler) CreateSaleOrder(c *gin.Context) {
	var req models.CreateSaleOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}

	so, err := h.sales.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "sale order created", so)
}

func (h *InventoryHandler) CancelSaleOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid sale order ID")
		return
	}

	so, err := h.sales.Cancel(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "sale order canceled", so)
}
