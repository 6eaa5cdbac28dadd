package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	attempts map[string]models.CheckoutAttempt
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		attempts: make(map[string]models.CheckoutAttempt),
	}
}

func (r *MockOrderRepository) Create(_ context.Context, attempt *models.CheckoutAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attempts[attempt.IdempotencyKey]; ok {
		return fmt.Errorf("checkout attempt %s: %w", attempt.IdempotencyKey, ErrDuplicateKey)
	}
	now := time.Now()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	r.attempts[attempt.IdempotencyKey] = *attempt
	return nil
}

func (r *MockOrderRepository) GetByIdempotencyKey(_ context.Context, key string) (*models.CheckoutAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempt, ok := r.attempts[key]
	if !ok {
		return nil, fmt.Errorf("checkout attempt %s: %w", key, ErrNotFound)
	}
	return &attempt, nil
}

func (r *MockOrderRepository) Update(_ context.Context, attempt *models.CheckoutAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.attempts[attempt.IdempotencyKey]; !ok {
		return fmt.Errorf("checkout attempt %s: %w", attempt.IdempotencyKey, ErrNotFound)
	}
	attempt.UpdatedAt = time.Now()
	r.attempts[attempt.IdempotencyKey] = *attempt
	return nil
}

func (r *MockOrderRepository) ListByUser(_ context.Context, userID string) ([]models.CheckoutAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]models.CheckoutAttempt, 0)
	for _, a := range r.attempts {
		if a.UserID == userID && a.Status == models.AttemptSucceeded {
			orders = append(orders, a)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}
