package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountCode is a percentage-off rule looked up server-side when a shopper
// enters a code.
type DiscountCode struct {
	Code        string          `json:"code" gorm:"primaryKey;type:varchar(40)"`
	Percent     decimal.Decimal `json:"percent" gorm:"type:decimal(5,2)"`
	Active      bool            `json:"active"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidTo     *time.Time      `json:"validTo,omitempty"`
	MinSubtotal decimal.Decimal `json:"minSubtotal" gorm:"type:decimal(12,2)"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// IsValidAt reports whether the code is active and inside its validity window.
func (d DiscountCode) IsValidAt(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidTo != nil && now.After(*d.ValidTo) {
		return false
	}
	return d.Percent.Sign() > 0 && d.Percent.LessThanOrEqual(decimal.NewFromInt(100))
}
