package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository records checkout attempts. Succeeded attempts are the
// customer's orders.
type OrderRepository interface {
	// Create fails with ErrDuplicateKey when the idempotency key is taken.
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	GetByIdempotencyKey(ctx context.Context, key string) (*models.CheckoutAttempt, error)
	Update(ctx context.Context, attempt *models.CheckoutAttempt) error
	ListByUser(ctx context.Context, userID string) ([]models.CheckoutAttempt, error)
}
