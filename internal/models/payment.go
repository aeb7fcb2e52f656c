package models

import "time"

// Transaction is the payment-service record of one payment attempt, keyed by the provider's payment id.
type Transaction struct {
	PaymentID     string            `json:"paymentId" db:"payment_id"`
	OrderID       string            `json:"orderId" db:"order_id"`
	CustomerID    string            `json:"customerId" db:"customer_id"`
	Amount        float64           `json:"amount" db:"amount"`
	Currency      string            `json:"currency" db:"currency"`
	PaymentMethod PaymentMethod     `json:"paymentMethod" db:"payment_method"`
	Status        TransactionStatus `json:"status" db:"status"`
	// StatusPublished is set once the PAID update for a succeeded payment reached the bus.
	StatusPublished bool      `json:"-" db:"status_published"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

type PaymentRequest struct {
	OrderID       string        `json:"orderId" binding:"required"`
	CustomerID    string        `json:"customerId"`
	Amount        float64       `json:"amount" binding:"required,gt=0"`
	Currency      string        `json:"currency" binding:"required"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

type PaymentIntent struct {
	PaymentID    string `json:"paymentId"`
	ClientSecret string `json:"clientSecret"`
}

type Refund struct {
	RefundID  string `json:"refundId"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}
