package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/saga"
)

type SagaRunner interface {
	CreateSagaOrder(ctx context.Context, req models.CreateOrderRequest) (*saga.Result, error)
}

type OrderService interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Checkout(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type OrderHandler struct {
	saga   SagaRunner
	orders OrderService
	logger *zap.Logger
}

func NewOrderHandler(saga SagaRunner, orders OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{saga: saga, orders: orders, logger: logger}
}

func (h *OrderHandler) Register(r gin.IRouter) {
	r.POST("/create-saga-order", h.CreateSagaOrder)
	r.GET("/order/:id", h.GetOrder)
	r.PATCH("/order/cancel/:id", h.CancelOrder)
	r.PATCH("/order/checkout/:id", h.Checkout)
}

// HeaderOrderID carries the id of the order a saga created.
const HeaderOrderID = "X-Order-Id"

// CreateSagaOrder places an order across order, payment and inventory and answers with
// the payment client secret.
func (h *OrderHandler) CreateSagaOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}

	result, err := h.saga.CreateSagaOrder(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	c.Header(HeaderOrderID, result.OrderID.String())
	respond(c, http.StatusCreated, "order placed: "+result.OrderID.String(), result.ClientSecret)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid order ID")
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "order found", order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid order ID")
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "order canceled", order)
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid order ID")
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "order checked out", order)
}
