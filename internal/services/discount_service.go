package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/cart"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
)

// DiscountService validates codes against the discount_codes table.
type DiscountService struct {
	repo repositories.DiscountRepository
	now  func() time.Time
}

func NewDiscountService(repo repositories.DiscountRepository) *DiscountService {
	return &DiscountService{repo: repo, now: time.Now}
}

// Validate resolves code for a cart with the given subtotal.
func (s *DiscountService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (cart.AppliedDiscount, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return cart.AppliedDiscount{}, ErrDiscountInvalid
	}

	d, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return cart.AppliedDiscount{}, ErrDiscountInvalid
	}
	if err != nil {
		return cart.AppliedDiscount{}, fmt.Errorf("failed to look up discount: %w", err)
	}
	if !d.IsValidAt(s.now()) {
		return cart.AppliedDiscount{}, ErrDiscountInvalid
	}
	if subtotal.LessThan(d.MinSubtotal) {
		return cart.AppliedDiscount{}, fmt.Errorf("%w (minimum %s)", ErrDiscountMinimum, d.MinSubtotal.StringFixed(2))
	}
	return cart.AppliedDiscount{Code: d.Code, Percent: d.Percent}, nil
}
