package models

import "time"

type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

type Product struct {
	ID         int64             `json:"id" db:"id"`
	Name       string            `json:"name" db:"name"`
	Price      float64           `json:"price" db:"price"`
	Status     ProductStatus     `json:"status" db:"status"`
	Attributes map[string]string `json:"attributes" db:"-"`
	CreatedAt  time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time         `json:"updatedAt" db:"updated_at"`
}

type CreateProductRequest struct {
	Name       string            `json:"name" binding:"required"`
	Price      float64           `json:"price" binding:"required,gt=0"`
	Status     ProductStatus     `json:"status"`
	Attributes map[string]string `json:"attributes"`
}

type UpdateProductRequest struct {
	Name       *string           `json:"name"`
	Price      *float64          `json:"price"`
	Status     *ProductStatus    `json:"status"`
	Attributes map[string]string `json:"attributes"`
}
