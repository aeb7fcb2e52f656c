package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// maxWebhookBody matches the provider's documented payload ceiling.
const maxWebhookBody = 65536

type Payments interface {
	CreatePaymentIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error)
	RefundPayment(ctx context.Context, paymentID string) (*models.Refund, error)
}

type WebhookReceiver interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	payments Payments
	webhooks WebhookReceiver
	logger   *zap.Logger
}

func NewPaymentHandler(payments Payments, webhooks WebhookReceiver, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks, logger: logger}
}

func (h *PaymentHandler) Register(r gin.IRouter) {
	r.POST("/payment/intent", h.CreatePaymentIntent)
	r.POST("/payment/refund/:paymentId", h.RefundPayment)
	r.POST("/webhook", h.Webhook)
}

func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}

	intent, err := h.payments.CreatePaymentIntent(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "payment intent created", intent)
}

func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	refund, err := h.payments.RefundPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "payment refunded", refund)
}

// Webhook receives provider notifications signed in the Stripe-Signature header.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, h.logger, "failed to read webhook body")
		return
	}

	if err := h.webhooks.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "webhook processed", nil)
}
