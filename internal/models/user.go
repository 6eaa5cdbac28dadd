package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered storefront customer.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string         `json:"username" gorm:"uniqueIndex;type:varchar(100)"`
	Email     string         `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Password  string         `json:"-" gorm:"type:varchar(255)"` // bcrypt hash
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
