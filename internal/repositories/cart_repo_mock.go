package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCartRepository is an in-memory implementation of CartRepository.
type MockCartRepository struct {
	carts map[string]CartBlob
	mu    sync.RWMutex
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{carts: make(map[string]CartBlob)}
}

func (r *MockCartRepository) Load(_ context.Context, id string) (*CartBlob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blob, ok := r.carts[id]
	if !ok {
		return nil, fmt.Errorf("cart %s: %w", id, ErrNotFound)
	}
	blob.Payload = append([]byte(nil), blob.Payload...)
	return &blob, nil
}

func (r *MockCartRepository) Save(_ context.Context, id string, payload []byte, expected int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.carts[id].Version != expected {
		return 0, fmt.Errorf("cart %s at version %d: %w", id, expected, ErrVersionConflict)
	}
	next := expected + 1
	r.carts[id] = CartBlob{Payload: append([]byte(nil), payload...), Version: next, UpdatedAt: time.Now().UTC()}
	return next, nil
}

func (r *MockCartRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, id)
	return nil
}

// Put stores a raw payload, bypassing version checks. Used to seed
// unparseable data in tests.
func (r *MockCartRepository) Put(id string, payload []byte, version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[id] = CartBlob{Payload: payload, Version: version, UpdatedAt: time.Now().UTC()}
}
