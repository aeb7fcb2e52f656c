package models

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	CustomerID    string        `json:"customerId" db:"customer_id"`
	Amount        float64       `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`
	Status        OrderStatus   `json:"status" db:"status"`
	StatusName    string        `json:"statusName" db:"status_name"`
	Items         []OrderItem   `json:"orderItems"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time     `json:"updatedAt" db:"updated_at"`
}

// SetStatus keeps the numeric code and the symbolic name in step.
func (o *Order) SetStatus(s OrderStatus) {
	o.Status = s
	o.StatusName = s.String()
}

type OrderItem struct {
	ID          int64     `json:"id" db:"id"`
	OrderID     uuid.UUID `json:"orderId" db:"order_id"`
	ProductID   int64     `json:"productId" db:"product_id"`
	ProductName string    `json:"productName" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Price       float64   `json:"price" db:"price"`
}

// CreateOrderRequest is the body of POST /create-saga-order.
type CreateOrderRequest struct {
	CustomerID    string                   `json:"customerId"`
	Amount        float64                  `json:"amount" binding:"required,gt=0"`
	Currency      string                   `json:"currency" binding:"required"`
	PaymentMethod PaymentMethod            `json:"paymentMethod"`
	Items         []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CreateOrderItemRequest struct {
	ProductID   int64   `json:"productId" binding:"required"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity" binding:"required,gt=0"`
	Price       float64 `json:"price"`
}
