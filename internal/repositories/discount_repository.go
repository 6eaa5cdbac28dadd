package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// DiscountRepository looks up discount codes. Codes are case-insensitive and
// stored upper-case.
type DiscountRepository interface {
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	Create(ctx context.Context, d *models.DiscountCode) error
}

// GORMDiscountRepository is a GORM implementation of DiscountRepository.
type GORMDiscountRepository struct {
	db *gorm.DB
}

func NewGORMDiscountRepository(db *gorm.DB) *GORMDiscountRepository {
	return &GORMDiscountRepository{db: db}
}

func (r *GORMDiscountRepository) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var d models.DiscountCode
	if err := r.db.WithContext(ctx).First(&d, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("discount %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get discount %s: %w", code, err)
	}
	return &d, nil
}

func (r *GORMDiscountRepository) Create(ctx context.Context, d *models.DiscountCode) error {
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create discount %s: %w", d.Code, err)
	}
	return nil
}

// MockDiscountRepository is an in-memory implementation of DiscountRepository.
type MockDiscountRepository struct {
	codes map[string]models.DiscountCode
	mu    sync.RWMutex
}

func NewMockDiscountRepository() *MockDiscountRepository {
	return &MockDiscountRepository{codes: make(map[string]models.DiscountCode)}
}

func (r *MockDiscountRepository) GetByCode(_ context.Context, code string) (*models.DiscountCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	d, ok := r.codes[code]
	if !ok {
		return nil, fmt.Errorf("discount %s: %w", code, ErrNotFound)
	}
	return &d, nil
}

func (r *MockDiscountRepository) Create(_ context.Context, d *models.DiscountCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	if _, ok := r.codes[d.Code]; ok {
		return fmt.Errorf("discount %s: %w", d.Code, ErrDuplicateKey)
	}
	r.codes[d.Code] = *d
	return nil
}
