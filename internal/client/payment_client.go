package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/discovery"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// PaymentClient calls payment-service.
type PaymentClient struct {
	baseClient
}

func NewPaymentClient(resolver Resolver, timeout time.Duration, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{baseClient: newBaseClient(discovery.PaymentService, resolver, timeout, logger)}
}

func (c *PaymentClient) CreatePaymentIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payment/intent", req, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *PaymentClient) RefundPayment(ctx context.Context, paymentID string) (*models.Refund, error) {
	var refund models.Refund
	if err := c.do(ctx, http.MethodPost, "/payment/refund/"+url.PathEscape(paymentID), nil, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}
