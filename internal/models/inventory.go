package models

import (
	"time"

	"github.com/google/uuid"
)

type InventoryItem struct {
	ProductID         int64     `json:"productId" db:"product_id"`
	AvailableQuantity int       `json:"availableQuantity" db:"available_quantity"`
	ReservedQuantity  int       `json:"reservedQuantity" db:"reserved_quantity"`
	TotalQuantity     int       `json:"totalQuantity" db:"total_quantity"`
	Version           int64     `json:"version" db:"version"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// Balanced reports whether total equals available plus reserved and no counter is negative.
func (i InventoryItem) Balanced() bool {
	return i.AvailableQuantity >= 0 && i.ReservedQuantity >= 0 &&
		i.TotalQuantity == i.AvailableQuantity+i.ReservedQuantity
}

type TransactionType string

const (
	TransactionIn           TransactionType = "IN"
	TransactionOut          TransactionType = "OUT"
	TransactionInitialStock TransactionType = "INITIAL_STOCK"
)

// InventoryTransaction is one append-only audit row per ledger mutation.
type InventoryTransaction struct {
	ID          int64           `json:"id" db:"id"`
	ProductID   int64           `json:"productId" db:"product_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Type        TransactionType `json:"type" db:"type"`
	ReferenceID string          `json:"referenceId" db:"reference_id"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// SaleOrder mirrors an Order on the inventory side. StockReserved is true while
// the items' quantities are held in the ledger's reserved counter.
type SaleOrder struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	CustomerID    string          `json:"customerId" db:"customer_id"`
	Amount        float64         `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Status        OrderStatus     `json:"status" db:"status"`
	StockReserved bool            `json:"stockReserved" db:"stock_reserved"`
	Items         []SaleOrderItem `json:"items"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

type SaleOrderItem struct {
	ID          int64     `json:"id" db:"id"`
	SaleOrderID uuid.UUID `json:"saleOrderId" db:"sale_order_id"`
	ProductID   int64     `json:"productId" db:"product_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Price       float64   `json:"price" db:"price"`
}

// CreateSaleOrderRequest is what the saga sends to POST /sale-order/create.
type CreateSaleOrderRequest struct {
	OrderID    uuid.UUID                `json:"orderId" binding:"required"`
	CustomerID string                   `json:"customerId"`
	Amount     float64                  `json:"amount"`
	Currency   string                   `json:"currency"`
	Items      []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type AdjustStockRequest struct {
	ProductID   int64  `json:"productId" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
	IsAddition  bool   `json:"isAddition"`
	ReferenceID string `json:"referenceId"`
}
