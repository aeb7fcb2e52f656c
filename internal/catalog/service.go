package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/lock"
	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/models"
)

var (
	ErrProductNotFound = apperror.NotFound("product not found")
	ErrNameTaken       = apperror.Conflict("product name already in use")
)

// Store is implemented by db.CachedProductRepository. Lookups return nil when nothing matches.
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	GetByName(ctx context.Context, name string) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product, previousName string) error
	Delete(ctx context.Context, p *models.Product) error
}

// KeyedLocker is implemented by lock.Manager.
type KeyedLocker interface {
	lock.Locker
	Key(parts ...string) string
}

type EventPublisher interface {
	PublishProductEvent(ctx context.Context, event models.ProductEvent) error
}

type Service struct {
	store     Store
	locker    KeyedLocker
	publisher EventPublisher
	wait      time.Duration
	lease     time.Duration
	logger    *zap.Logger
}

func NewService(store Store, locker KeyedLocker, publisher EventPublisher, wait, lease time.Duration, logger *zap.Logger) *Service {
	if wait <= 0 {
		wait = lock.DefaultWaitTime
	}
	if lease <= 0 {
		lease = lock.DefaultLeaseTime
	}
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		wait:      wait,
		lease:     lease,
		logger:    logger,
	}
}

func validStatus(s models.ProductStatus) bool {
	return s == models.ProductActive || s == models.ProductInactive
}

// AddProduct creates the product unless one with the same name exists, in which case
// that product is returned with created=false.
func (s *Service) AddProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, false, apperror.Validation("name is required")
	}
	if req.Price <= 0 {
		return nil, false, apperror.Validation("price must be positive")
	}
	if req.Status == "" {
		req.Status = models.ProductActive
	}
	if !validStatus(req.Status) {
		return nil, false, apperror.Validation(fmt.Sprintf("unknown product status %q", req.Status))
	}

	var (
		product *models.Product
		created bool
	)
	err := lock.WithLock(ctx, s.locker, s.locker.Key("product", "add", name), s.wait, s.lease, func(ctx context.Context) error {
		existing, err := s.store.GetByName(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to look up product: %w", err)
		}
		if existing != nil {
			product = existing
			return nil
		}

		now := time.Now().UTC()
		product = &models.Product{
			Name:       name,
			Price:      req.Price,
			Status:     req.Status,
			Attributes: req.Attributes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Create(ctx, product); err != nil {
			return err
		}
		created = true
		s.publish(ctx, models.ProductCreated{Product: *product, Timestamp: now})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("✅ Product created", zap.Int64("product_id", product.ID), zap.String("name", name))
	} else {
		s.logger.Info("Product already exists", zap.Int64("product_id", product.ID), zap.String("name", name))
	}
	return product, created, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req models.UpdateProductRequest) (*models.Product, error) {
	var updated *models.Product
	err := lock.WithLock(ctx, s.locker, s.locker.Key("product", "update", strconv.FormatInt(id, 10)), s.wait, s.lease, func(ctx context.Context) error {
		current, err := s.GetProduct(ctx, id)
		if err != nil {
			return err
		}

		next := *current
		if req.Name != nil {
			next.Name = strings.TrimSpace(*req.Name)
			if next.Name == "" {
				return apperror.Validation("name must not be empty")
			}
		}
		if req.Price != nil {
			if *req.Price <= 0 {
				return apperror.Validation("price must be positive")
			}
			next.Price = *req.Price
		}
		if req.Status != nil {
			if !validStatus(*req.Status) {
				return apperror.Validation(fmt.Sprintf("unknown product status %q", *req.Status))
			}
			next.Status = *req.Status
		}
		if req.Attributes != nil {
			next.Attributes = req.Attributes
		}

		if next.Name != current.Name {
			other, err := s.store.GetByName(ctx, next.Name)
			if err != nil {
				return fmt.Errorf("failed to look up product: %w", err)
			}
			if other != nil && other.ID != id {
				return ErrNameTaken
			}
		}

		next.UpdatedAt = time.Now().UTC()
		if err := s.store.Update(ctx, &next, current.Name); err != nil {
			return err
		}
		updated = &next
		s.publish(ctx, models.ProductUpdated{Product: next, Timestamp: next.UpdatedAt})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("🔄 Product updated", zap.Int64("product_id", id))
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	err := lock.WithLock(ctx, s.locker, s.locker.Key("product", "delete", strconv.FormatInt(id, 10)), s.wait, s.lease, func(ctx context.Context) error {
		current, err := s.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Delete(ctx, current); err != nil {
			return err
		}
		s.publish(ctx, models.ProductDeleted{Product: *current, Timestamp: time.Now().UTC()})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("🗑️ Product deleted", zap.Int64("product_id", id))
	return nil
}

// publish runs after the row is committed, so a broker failure is logged rather than returned.
func (s *Service) publish(ctx context.Context, event models.ProductEvent) {
	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		s.logger.Error("❌ Failed to publish product event",
			zap.String("event", fmt.Sprintf("%T", event)),
			zap.Error(err),
		)
	}
}
