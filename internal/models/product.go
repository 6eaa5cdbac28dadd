package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. Price is in the base currency (SEK) and tax-inclusive.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Slug        string          `json:"slug" gorm:"uniqueIndex;type:varchar(120)" validate:"required,min=2,max=120"`
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"omitempty,max=2000"`
	Image       string          `json:"image,omitempty" validate:"omitempty,max=500"`
	Category    string          `json:"category,omitempty" gorm:"index;type:varchar(60)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}
