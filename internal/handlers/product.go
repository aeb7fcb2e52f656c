package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

type Catalog interface {
	AddProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, bool, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req models.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

type ProductHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewProductHandler(catalog Catalog, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, logger: logger}
}

func (h *ProductHandler) Register(r gin.IRouter) {
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
}

// CreateProduct returns 201 for a new product and 200 when the name already existed.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}

	product, created, err := h.catalog.AddProduct(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if !created {
		respond(c, http.StatusOK, "product already exists", product)
		return
	}
	respond(c, http.StatusCreated, "product created", product)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid product ID")
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "product found", product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid product ID")
		return
	}
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err.Error())
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "product updated", product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		badRequest(c, h.logger, "invalid product ID")
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "product deleted", nil)
}
