package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

// Provider is the third-party payment processor.
type Provider interface {
	CreateIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error)
	Refund(ctx context.Context, paymentID string) (*models.Refund, error)
}

type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil)}
}

// toMinorUnits converts 12.34 into 1234.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (p *StripeProvider) CreateIntent(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("orderId", req.OrderID)
	if req.CustomerID != "" {
		params.AddMetadata("customerId", req.CustomerID)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError("failed to create payment intent", err)
	}
	return &models.PaymentIntent{PaymentID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProvider) Refund(ctx context.Context, paymentID string) (*models.Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, stripeError("failed to refund payment", err)
	}
	return &models.Refund{RefundID: r.ID, PaymentID: paymentID, Status: string(r.Status)}, nil
}

// stripeError keeps client mistakes out of the upstream category.
func stripeError(msg string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 {
		return apperror.Wrap(apperror.CategoryValidation, fmt.Sprintf("%s: %s", msg, se.Msg), err)
	}
	return apperror.Upstream(msg, err)
}
