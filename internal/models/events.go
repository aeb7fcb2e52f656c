package models

import "github.com/google/uuid"

// CheckoutEvent is published on checkout-order-topic.
type CheckoutEvent struct {
	OrderID       uuid.UUID     `json:"orderId"`
	CustomerID    string        `json:"customerId"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// StatusUpdateEvent is published on update-order-status-topic. Status is the symbolic name.
type StatusUpdateEvent struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}
