package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{db: db}
}

// GetAll returns the catalog ordered by category and name.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("category, name").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GORMProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *GORMProductRepository) first(ctx context.Context, query string, arg string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", arg, err)
	}
	return &product, nil
}

// Create inserts a product, generating its ID when empty.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}
