package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// ProductService serves the read-only catalog and prices cart lines from it.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// GetAllProducts retrieves the whole catalog.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProduct looks a product up by ID, falling back to slug.
func (s *ProductService) GetProduct(ctx context.Context, idOrSlug string) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, idOrSlug)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}
	p, err = s.repo.GetBySlug(ctx, idOrSlug)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, idOrSlug)
	}
	return p, err
}

// Seed inserts products that are not yet present, matched by slug.
func (s *ProductService) Seed(ctx context.Context, products []models.Product) error {
	for i := range products {
		if _, err := s.repo.GetBySlug(ctx, products[i].Slug); err == nil {
			continue
		}
		if err := s.repo.Create(ctx, &products[i]); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", products[i].Slug, err)
		}
		log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
	}
	return nil
}
