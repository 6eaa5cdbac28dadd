package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attempt statuses as persisted.
const (
	AttemptSubmitting = "submitting"
	AttemptSucceeded  = "succeeded"
	AttemptFailed     = "failed"
)

// OrderItem is a cart line frozen at submission time.
type OrderItem struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// MaxIdempotencyKeyLength matches the width of the CheckoutAttempt key column.
const MaxIdempotencyKeyLength = 64

// CheckoutAttempt records one payment submission, keyed by its idempotency
// key. A succeeded attempt doubles as the order confirmation.
type CheckoutAttempt struct {
	IdempotencyKey string          `json:"idempotencyKey" gorm:"primaryKey;type:varchar(64)"`
	SessionID      string          `json:"sessionId" gorm:"index;type:varchar(36)"`
	CartID         string          `json:"cartId" gorm:"index;type:varchar(36)"`
	UserID         string          `json:"userId,omitempty" gorm:"index;type:varchar(36)"`
	OrderCode      string          `json:"orderCode" gorm:"type:varchar(64)"`
	Method         string          `json:"method" gorm:"type:varchar(20)"`
	Status         string          `json:"status" gorm:"type:varchar(20)"`
	TransactionID  string          `json:"transactionId,omitempty" gorm:"type:varchar(100)"`
	ErrorMessage   string          `json:"error,omitempty"`
	Items          []OrderItem     `json:"items" gorm:"serializer:json"`
	Subtotal       decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2)"`
	Shipping       decimal.Decimal `json:"shipping" gorm:"type:decimal(12,2)"`
	Discount       decimal.Decimal `json:"discount" gorm:"type:decimal(12,2)"`
	Total          decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`
	Currency       string          `json:"currency" gorm:"type:varchar(3)"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
