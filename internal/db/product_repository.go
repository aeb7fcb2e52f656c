package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

var ErrProductNotFound = apperror.NotFound("product not found")

type ProductRepository struct {
	db *sqlx.DB
}

func NewProductRepository(database *PostgresDB) *ProductRepository {
	return &ProductRepository{db: database.Conn}
}

const productColumns = "id, name, price, status, attributes, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var (
		p     models.Product
		attrs []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Status, &attrs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode product attributes: %w", err)
		}
	}
	return &p, nil
}

// GetByID returns a single product, or nil when it does not exist
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	row := r.db.QueryRowxContext(ctx, r.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// GetByName is the lookup behind duplicate detection in AddProduct
func (r *ProductRepository) GetByName(ctx context.Context, name string) (*models.Product, error) {
	row := r.db.QueryRowxContext(ctx, r.db.Rebind("SELECT "+productColumns+" FROM products WHERE name = ?"), name)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product by name: %w", err)
	}
	return p, nil
}

// Create inserts a new product and fills in its id
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	attrs, err := json.Marshal(attributesOrEmpty(p.Attributes))
	if err != nil {
		return fmt.Errorf("failed to encode product attributes: %w", err)
	}

	err = r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO products (name, price, status, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		p.Name, p.Price, p.Status, string(attrs), p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a product
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	attrs, err := json.Marshal(attributesOrEmpty(p.Attributes))
	if err != nil {
		return fmt.Errorf("failed to encode product attributes: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE products SET name = ?, price = ?, status = ?, attributes = ?, updated_at = ?
		WHERE id = ?`),
		p.Name, p.Price, p.Status, string(attrs), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes a product
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func attributesOrEmpty(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}
