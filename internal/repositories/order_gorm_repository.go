package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) Create(ctx context.Context, attempt *models.CheckoutAttempt) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(attempt)
	if res.Error != nil {
		return fmt.Errorf("failed to create checkout attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("checkout attempt %s: %w", attempt.IdempotencyKey, ErrDuplicateKey)
	}
	return nil
}

func (r *GORMOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.CheckoutAttempt, error) {
	var attempt models.CheckoutAttempt
	if err := r.db.WithContext(ctx).First(&attempt, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checkout attempt %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get checkout attempt %s: %w", key, err)
	}
	return &attempt, nil
}

func (r *GORMOrderRepository) Update(ctx context.Context, attempt *models.CheckoutAttempt) error {
	res := r.db.WithContext(ctx).Save(attempt)
	if res.Error != nil {
		return fmt.Errorf("failed to update checkout attempt %s: %w", attempt.IdempotencyKey, res.Error)
	}
	return nil
}

func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.CheckoutAttempt, error) {
	var orders []models.CheckoutAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.AttemptSucceeded).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}
