package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository keeps carts in the cart_records table.
type GORMCartRepository struct {
	db *gorm.DB
}

func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) Load(ctx context.Context, id string) (*CartBlob, error) {
	var rec models.CartRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load cart %s: %w", id, err)
	}
	return &CartBlob{Payload: []byte(rec.Payload), Version: rec.Version, UpdatedAt: rec.UpdatedAt}, nil
}

func (r *GORMCartRepository) Save(ctx context.Context, id string, payload []byte, expected int64) (int64, error) {
	next := expected + 1
	now := time.Now().UTC()

	if expected == 0 {
		res := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CartRecord{ID: id, Payload: string(payload), Version: next, UpdatedAt: now})
		if res.Error != nil {
			return 0, fmt.Errorf("failed to insert cart %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return 0, fmt.Errorf("cart %s already exists: %w", id, ErrVersionConflict)
		}
		return next, nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.CartRecord{}).
		Where("id = ? AND version = ?", id, expected).
		Updates(map[string]interface{}{"payload": string(payload), "version": next, "updated_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update cart %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("cart %s at version %d: %w", id, expected, ErrVersionConflict)
	}
	return next, nil
}

func (r *GORMCartRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&models.CartRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", id, err)
	}
	return nil
}
